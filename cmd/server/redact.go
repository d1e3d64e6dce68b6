package main

import (
	"net/url"
	"strings"
)

// redactDSN hides the password of a postgres URL before it is logged.
func redactDSN(driver, dsn string) string {
	if strings.ToLower(driver) != "postgres" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
