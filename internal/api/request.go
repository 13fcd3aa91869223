package api

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jh9098/gtoapp/internal/campaign"
	"github.com/jh9098/gtoapp/internal/crawl"
)

// crawlRequest is the first frame an observer sends on the crawl socket.
// Clients send selected_days and exclude_keywords as either JSON lists or
// comma-delimited strings, so the request is decoded tolerantly.
type crawlRequest struct {
	Identity string
	Params   crawl.Params
}

// parseCrawlRequest decodes the inbound request JSON.
func parseCrawlRequest(payload []byte) crawlRequest {
	doc := gjson.ParseBytes(payload)

	req := crawlRequest{
		Identity: doc.Get("session_cookie").String(),
		Params: crawl.Params{
			UseFullRange: true,
			Filters: campaign.Filters{
				SelectedDays:    stringList(doc.Get("selected_days")),
				ExcludeKeywords: stringList(doc.Get("exclude_keywords")),
			},
		},
	}
	req.Params.Identity = req.Identity

	if v := doc.Get("use_full_range"); v.Exists() {
		req.Params.UseFullRange = v.Bool()
	}
	req.Params.StartID = optionalID(doc.Get("start_id"))
	req.Params.EndID = optionalID(doc.Get("end_id"))

	if ids := doc.Get("exclude_ids"); ids.IsArray() {
		excluded := make(map[campaign.ID]struct{})
		for _, v := range ids.Array() {
			excluded[campaign.ID(v.Int())] = struct{}{}
		}
		req.Params.ExcludeIDs = excluded
	}

	return req
}

// stringList accepts a JSON array of strings or a single comma-delimited
// string, trimming whitespace and dropping empties either way.
func stringList(res gjson.Result) []string {
	var raw []string
	switch {
	case res.IsArray():
		for _, v := range res.Array() {
			raw = append(raw, v.String())
		}
	case res.Type == gjson.String:
		raw = strings.Split(res.String(), ",")
	}
	var out []string
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func optionalID(res gjson.Result) *campaign.ID {
	if !res.Exists() || res.Type == gjson.Null {
		return nil
	}
	id := campaign.ID(res.Int())
	return &id
}
