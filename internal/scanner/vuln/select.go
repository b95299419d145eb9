package vuln

import (
	"strings"

	"github.com/buemura/surface/pkg/types"
)

var (
	sqlDatabases   = []string{"mysql", "mariadb", "postgres", "mssql", "oracle", "sqlite"}
	nosqlDatabases = []string{"mongo", "couchdb", "redis", "cassandra"}
	pythonSignals  = []string{"python", "django", "flask"}
)

// Select returns the probe names to run for stack, in execution order. It
// only reads stack and always gives the same answer for the same input.
func Select(stack types.TechStack) []string {
	var names []string
	seen := map[string]bool{}
	add := func(n ...string) {
		for _, name := range n {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	add(XSS, SSRF, CMDI)

	db := strings.ToLower(stack.Database)
	if containsAny(db, sqlDatabases) {
		add(SQLI)
	}
	if containsAny(db, nosqlDatabases) {
		add(NoSQL)
	}

	runtime := strings.ToLower(stack.Backend + " " + strings.Join(stack.Languages, " "))
	if strings.Contains(runtime, "php") {
		add(XXE, SSTI)
	}
	if containsAny(runtime, pythonSignals) {
		add(SSTI)
	}

	for _, fw := range stack.Frameworks {
		if strings.EqualFold(fw, "graphql") {
			add(GraphQL)
			break
		}
	}

	add(BOLA, AccessControl, JWT)
	add(Misconfig, DataExposure)
	return names
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
