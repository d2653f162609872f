// Package keys derives the surrogate keys shared by the dimension and fact
// builders. Dimensions and facts never join to agree on a key value; each
// side recomputes it, so every formula lives here exactly once, in both its
// Go form and its DuckDB SQL form. The two renderings must stay equivalent;
// keys_test.go asserts it against a live database.
package keys

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// Version identifies the key-derivation formulas. It is recorded alongside
// the transform cursor so a formula change can be detected before it silently
// splits fact history.
const Version = 1

// TimestampLayout is the canonical rendering of an instant. It doubles as the
// timestamp dimension's surrogate key, so it must sort the same way the
// underlying timestamps do.
const TimestampLayout = "20060102150405"

// CoinKey returns the surrogate key for a coin. It depends on coin_id only,
// never on mutable attributes, so a coin's key survives renames and full
// dimension rebuilds.
func CoinKey(coinID string) string {
	return md5hex(coinID)
}

// TimestampKey returns the surrogate key for an instant. Identical instants
// from different sources produce identical keys, which is what lets both fact
// tables share one time dimension.
func TimestampKey(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SnapshotKey returns the primary key of a price snapshot fact: one row per
// (coin, fetch time) observation.
func SnapshotKey(coinID string, t time.Time) string {
	return md5hex(coinID + "|" + TimestampKey(t))
}

// SentimentKey returns the primary key of a sentiment fact, namespaced by
// source so a second sentiment feed cannot collide on the same instant.
func SentimentKey(source string, t time.Time) string {
	return md5hex(source + "|" + TimestampKey(t))
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SQL renderings. Each takes column expressions and returns the DuckDB
// expression computing the same value as the Go function above. Warehouse
// timestamps are stored in UTC, so strftime needs no zone conversion.

// CoinKeySQL renders CoinKey for a coin_id column.
func CoinKeySQL(coinIDCol string) string {
	return fmt.Sprintf("md5(%s)", coinIDCol)
}

// TimestampKeySQL renders TimestampKey for a TIMESTAMP column.
func TimestampKeySQL(tsCol string) string {
	return fmt.Sprintf("strftime(%s, '%%Y%%m%%d%%H%%M%%S')", tsCol)
}

// SnapshotKeySQL renders SnapshotKey for coin_id and TIMESTAMP columns.
func SnapshotKeySQL(coinIDCol, tsCol string) string {
	return fmt.Sprintf("md5(concat(%s, '|', %s))", coinIDCol, TimestampKeySQL(tsCol))
}

// SentimentKeySQL renders SentimentKey for source and TIMESTAMP columns.
func SentimentKeySQL(sourceCol, tsCol string) string {
	return fmt.Sprintf("md5(concat(%s, '|', %s))", sourceCol, TimestampKeySQL(tsCol))
}
