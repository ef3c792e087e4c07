// Package domain models the tables pulled from the UN SDG statistics API.
//
// # Data Source
//
// The UN Statistics Division publishes the Sustainable Development Goal (SDG)
// global database at https://unstats.un.org/SDGAPI/. Two endpoints are used:
//
//	GET /v1/sdg/Indicator/List            every indicator with its nested series
//	GET /v1/sdg/Series/Data?seriesCode=X  observations for a single series
//
// # Indicator List Shape
//
// The indicator list is a JSON array. Each element is one indicator and carries
// a nested "series" array:
//
//	{"goal":"1","target":"1.1","code":"1.1.1","description":"...","tier":"1",
//	 "series":[{"code":"SI_POV_DAY1","description":"...","release":"2024.Q1.G.01"}]}
//
// Codes follow the goal/target/indicator hierarchy: goal "1", target "1.1",
// indicator "1.1.1". Series codes are upper-case identifiers such as
// "SI_POV_EMP1".
//
// Tier is the UN data-availability classification:
//
//	"1"  established methodology, data regularly produced
//	"2"  established methodology, data not regularly produced
//	"3"  no established methodology
//
// Some indicators carry multiple tiers or an empty string. Tier values are
// matched as exact strings; nothing is trimmed or case-folded.
//
// # Flattening
//
// [Flatten] turns a nested document into a [Table] with one row per element of
// the record path. Parent fields listed in [FlattenOptions.Meta] are repeated on
// every child row. Record-own columns receive [FlattenOptions.RecordPrefix] so
// the series "code" becomes "m_code" and does not collide with the indicator
// "code". Nested objects inside a record become dotted column names.
//
// A parent without the record path contributes zero rows when
// [FlattenOptions.TolerateMissingPath] is set, and fails with a [ParseError]
// otherwise.
//
// # Series Data Shape
//
// The series data response is a single JSON object whose "data" array holds the
// observations (geoAreaCode, timePeriodStart, value, units, ...). Observation
// rows are passed through unmodified; their columns are whatever the API
// returns.
package domain
