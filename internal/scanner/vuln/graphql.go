package vuln

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

var graphQLEndpoints = []string{"/graphql", "/api/graphql", "/v1/graphql", "/query"}

var graphQLQueries = []string{
	`{ __typename }`,
	`{ __schema { queryType { name } } }`,
	`{ __schema { types { name } } }`,
}

type graphQLProbe struct{ base }

// NewGraphQL creates the GraphQL introspection probe.
func NewGraphQL(cfg Config) scanner.Probe {
	return &graphQLProbe{newBase(cfg, GraphQL, "GraphQL introspection exposure")}
}

func (p *graphQLProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	for _, endpoint := range graphQLEndpoints {
		testURL := joinPath(target, endpoint)

		for _, query := range graphQLQueries {
			if ctx.Err() != nil {
				return nil, nil
			}
			progress.Notify(endpoint + " " + query)

			body, err := json.Marshal(map[string]string{"query": query})
			if err != nil {
				return nil, fmt.Errorf("encoding query: %w", err)
			}

			resp, err := p.do(ctx, target, request{
				Method:      http.MethodPost,
				URL:         testURL,
				Body:        string(body),
				ContentType: "application/json",
			})
			if err != nil {
				p.skip(query, err)
				continue
			}
			if resp.Status != http.StatusOK || !introspected(resp.Body) {
				continue
			}

			p.log.Warn("GraphQL introspection", "url", testURL)
			return []types.Finding{{
				Name:        "GraphQL Introspection Enabled",
				Severity:    types.SeverityMedium,
				Description: "GraphQL introspection is enabled, exposing the full API schema to anyone.",
				Evidence:    fmt.Sprintf("POST %s with %q returned schema data", testURL, query),
				URL:         testURL,
				Remediation: "Disable introspection in production or restrict it to authenticated clients.",
				Metadata: map[string]string{
					"endpoint": endpoint,
					"query":    query,
				},
			}}, nil
		}
	}

	return nil, nil
}

// introspected reports whether body is a GraphQL result whose data carries
// meta fields.
func introspected(body string) bool {
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil || len(out.Data) == 0 || string(out.Data) == "null" {
		return false
	}
	data := string(out.Data)
	return strings.Contains(data, "__schema") || strings.Contains(data, "__typename") ||
		strings.Contains(data, "queryType") || strings.Contains(data, "types")
}
