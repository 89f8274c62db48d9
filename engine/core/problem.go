package core

import "net/http"

const problemTypeBlank = "about:blank"

// ProblemDocument documents the error body returned by the HTTP API.
type ProblemDocument struct {
	Status   int    `json:"status"             example:"409"`
	Error    string `json:"error"              example:"Conflict"`
	Details  string `json:"details,omitempty"  example:"Please upload a document first."`
	Code     string `json:"code,omitempty"     example:"NO_DOCUMENT"`
	Type     string `json:"type"               example:"about:blank"`
	Instance string `json:"instance,omitempty" example:"/api/v0/sessions/2NRa9Pz/embeddings"`
}

// Problem is an RFC 7807 response before serialization. Extras are merged
// into the body but never replace the standard members.
type Problem struct {
	Status   int
	Title    string
	Code     string
	Detail   string
	Instance string
	Extras   map[string]any
}

// ProblemFromError describes err with status. The code is taken from err
// when it carries one.
func ProblemFromError(status int, err error) *Problem {
	p := &Problem{Status: status, Code: CodeOf(err)}
	if err != nil {
		p.Detail = err.Error()
	}
	return p.Normalize()
}

// Normalize fills the status and title when they are missing.
func (p *Problem) Normalize() *Problem {
	if p == nil {
		p = &Problem{}
	}
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	return p
}

// Body renders the problem as the JSON object written to the client.
func (p *Problem) Body() map[string]any {
	body := make(map[string]any, 6+len(p.Extras))
	for key, value := range p.Extras {
		body[key] = value
	}
	body["status"] = p.Status
	body["error"] = p.Title
	body["type"] = problemTypeBlank
	delete(body, "details")
	delete(body, "code")
	delete(body, "instance")
	if p.Detail != "" {
		body["details"] = p.Detail
	}
	if p.Code != "" {
		body["code"] = p.Code
	}
	if p.Instance != "" {
		body["instance"] = p.Instance
	}
	return body
}
