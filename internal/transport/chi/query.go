package chi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
)

// paramsFromQuery reads search parameters in the stream request encoding:
// q, chains=1,8453, mcp|a2a|x402=true, minReputation, maxReputation,
// skills=a,b, domains=a,b, mode=AND|OR.
func paramsFromQuery(v url.Values) (params.Params, error) {
	p := params.Params{Query: v.Get("q")}
	f := &p.Filters

	if raw := v.Get("chains"); raw != "" {
		for _, part := range splitList(raw) {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return params.Params{}, fmt.Errorf("chains: invalid chain id %q", part)
			}
			f.Chains = append(f.Chains, id)
		}
	}

	var err error
	if f.MCP, err = boolParam(v, "mcp"); err != nil {
		return params.Params{}, err
	}
	if f.A2A, err = boolParam(v, "a2a"); err != nil {
		return params.Params{}, err
	}
	if f.X402, err = boolParam(v, "x402"); err != nil {
		return params.Params{}, err
	}
	if f.MinReputation, err = floatParam(v, "minReputation"); err != nil {
		return params.Params{}, err
	}
	if f.MaxReputation, err = floatParam(v, "maxReputation"); err != nil {
		return params.Params{}, err
	}

	f.Skills = splitList(v.Get("skills"))
	f.Domains = splitList(v.Get("domains"))
	f.Mode = filter.Mode(strings.ToUpper(v.Get("mode")))

	return p, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolParam(v url.Values, key string) (*bool, error) {
	raw := v.Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid boolean %q", key, raw)
	}
	return &b, nil
}

func floatParam(v url.Values, key string) (*float64, error) {
	raw := v.Get(key)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return &f, nil
}
