package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// driverName is the sqlite3 driver with the store's SQL functions attached.
const driverName = "sqlite3_tingo"

var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("regexp", regexpMatch, true)
			},
		})
	})
}

var regexpCache sync.Map // pattern -> *regexp.Regexp

// regexpMatch implements "value REGEXP pattern", which SQLite calls as
// regexp(pattern, value). Non-text values never match.
func regexpMatch(pattern string, value any) (bool, error) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return false, nil
	}

	re, ok := regexpCache.Load(pattern)
	if !ok {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("regexp %q: %w", pattern, err)
		}
		re, _ = regexpCache.LoadOrStore(pattern, compiled)
	}
	return re.(*regexp.Regexp).MatchString(s), nil
}
