package vuln

import (
	"context"
	"fmt"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

var sqliParams = []string{
	"id", "user", "username", "email", "password", "search", "q",
	"query", "name", "page", "cat", "category", "item", "product",
}

// sqliPayloads are error-based injection vectors.
var sqliPayloads = []string{
	`'`,
	`"`,
	`' OR '1'='1`,
	`' OR 1=1 --`,
	`admin' --`,
	`') or ('1'='1--`,
	`' UNION SELECT NULL--`,
	`' UNION SELECT NULL,NULL--`,
	`' UNION SELECT @@version--`,
	`' AND extractvalue(1,concat(0x7e,version()))--`,
	`' AND 1=CONVERT(int,@@version)--`,
	`' AND 1=CAST((SELECT version()) AS int)--`,
	`1' AND '1'='2`,
	`1; DROP TABLE users--`,
}

// sqlErrorSignatures are database error strings, matched case-insensitively.
var sqlErrorSignatures = []string{
	// MySQL
	"You have an error in your SQL syntax",
	"supplied argument is not a valid MySQL",
	"mysql_fetch_array()",
	"mysql_num_rows()",
	"Warning: mysql",
	"com.mysql.jdbc",
	// PostgreSQL
	"PostgreSQL query failed",
	"pg_query()",
	"unterminated quoted string",
	"org.postgresql",
	"PSQLException",
	// MSSQL
	"Microsoft SQL Native Client error",
	"ODBC SQL Server Driver",
	"Unclosed quotation mark",
	"System.Data.SqlClient.SqlException",
	"Incorrect syntax near",
	// Oracle
	"ORA-01756",
	"ORA-00933",
	"ORA-00936",
	"oracle.jdbc",
	// SQLite
	"SQLite Error",
	"sqlite3.OperationalError",
	"SQLITE_ERROR",
	"SQL logic error",
	// Generic
	"SQL syntax",
	"syntax to use near",
	"quoted string not properly terminated",
	"SQLSTATE[",
}

type sqliProbe struct{ base }

// NewSQLI creates the error-based SQL injection probe.
func NewSQLI(cfg Config) scanner.Probe {
	return &sqliProbe{newBase(cfg, SQLI, "Error-based SQL injection")}
}

func (p *sqliProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	var findings []types.Finding
	baseline := p.baseline(ctx, target, target.URL, "id")

	for _, param := range sqliParams {
		for _, payload := range sqliPayloads {
			if ctx.Err() != nil {
				return findings, nil
			}
			progress.Notify(payload)

			testURL := withParam(target.URL, param, payload)
			resp, err := p.get(ctx, target, testURL)
			if err != nil {
				p.skip(payload, err)
				continue
			}

			sig, ok := firstIndicator(resp.Body, baseline, sqlErrorSignatures)
			if !ok {
				continue
			}

			findings = append(findings, types.Finding{
				Name:        "SQL Injection (Error-Based)",
				Severity:    types.SeverityCritical,
				Description: fmt.Sprintf("Parameter %q produced a database error when given an injection payload, indicating input reaches a SQL query unescaped.", param),
				Evidence:    fmt.Sprintf("Payload %q, error signature %q in response from %s", payload, sig, testURL),
				URL:         testURL,
				Remediation: "Use parameterized queries or prepared statements. Never concatenate user input into SQL.",
				Metadata: map[string]string{
					"param":     param,
					"payload":   payload,
					"signature": sig,
				},
			})
			p.log.Warn("SQL injection", "url", testURL, "param", param)
			break
		}
	}

	return findings, nil
}
