package server

import (
	"net/http"
	"strings"

	"jobboard/internal/auth"
)

// Access is what a route demands of the caller. The zero value means any
// authenticated principal.
type Access struct {
	Public bool
	Roles  []auth.Role
}

var (
	public        = Access{Public: true}
	authenticated = Access{}
)

func rolesOnly(roles ...auth.Role) Access {
	return Access{Roles: roles}
}

// AccessRule binds a verb and path pattern to an Access. An empty Method
// matches every verb. Patterns use "{name}" for one segment and a trailing
// "**" for any remainder, including none.
type AccessRule struct {
	Method string
	Path   string
	Access Access
}

var endpointAccess = []AccessRule{
	{Method: http.MethodGet, Path: "/healthz", Access: public},

	{Path: "/api/auth/**", Access: public},
	{Method: http.MethodGet, Path: "/oauth2/authorization/{provider}", Access: public},
	{Method: http.MethodGet, Path: "/login/oauth2/code/{provider}", Access: public},

	{Path: "/api/users/me/**", Access: authenticated},

	{Method: http.MethodGet, Path: "/api/jobs/**", Access: public},
	{Method: http.MethodPost, Path: "/api/jobs/**", Access: rolesOnly(auth.RoleRecruiter)},
	{Method: http.MethodPut, Path: "/api/jobs/**", Access: rolesOnly(auth.RoleRecruiter)},
	{Method: http.MethodDelete, Path: "/api/jobs/**", Access: rolesOnly(auth.RoleRecruiter, auth.RoleAdmin)},
	{Method: http.MethodPost, Path: "/api/applications/**", Access: rolesOnly(auth.RoleSeeker)},

	{Path: "/api/admin/**", Access: rolesOnly(auth.RoleAdmin)},
}

// Policy resolves the Access of a request from a static rule table.
type Policy struct {
	rules []compiledRule
}

type compiledRule struct {
	AccessRule
	segments []string
	rest     bool
}

func NewPolicy(rules []AccessRule) *Policy {
	p := &Policy{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		segs := splitPath(rule.Path)
		rest := len(segs) > 0 && segs[len(segs)-1] == "**"
		if rest {
			segs = segs[:len(segs)-1]
		}
		p.rules = append(p.rules, compiledRule{AccessRule: rule, segments: segs, rest: rest})
	}
	return p
}

// DefaultPolicy is the job board's route table.
func DefaultPolicy() *Policy {
	return NewPolicy(endpointAccess)
}

// Match returns the Access of the most specific matching rule. Requests no
// rule covers require authentication.
func (p *Policy) Match(method, path string) Access {
	segs := splitPath(path)
	var (
		best  *compiledRule
		score specificity
	)
	for i := range p.rules {
		rule := &p.rules[i]
		if rule.Method != "" && rule.Method != method {
			continue
		}
		sc, ok := rule.match(segs)
		if !ok {
			continue
		}
		if best == nil || score.less(sc) {
			best, score = rule, sc
		}
	}
	if best == nil {
		return authenticated
	}
	return best.Access
}

// specificity orders matches: more literal segments, then more bound
// segments, then no trailing wildcard, then a pinned verb.
type specificity struct {
	literals int
	params   int
	exact    bool
	verb     bool
}

func (a specificity) less(b specificity) bool {
	if a.literals != b.literals {
		return a.literals < b.literals
	}
	if a.params != b.params {
		return a.params < b.params
	}
	if a.exact != b.exact {
		return b.exact
	}
	return !a.verb && b.verb
}

func (r *compiledRule) match(segs []string) (specificity, bool) {
	if len(segs) < len(r.segments) || (!r.rest && len(segs) != len(r.segments)) {
		return specificity{}, false
	}
	sc := specificity{exact: !r.rest, verb: r.Method != ""}
	for i, want := range r.segments {
		if isParam(want) {
			sc.params++
			continue
		}
		if want != segs[i] {
			return specificity{}, false
		}
		sc.literals++
	}
	return sc, true
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// allows reports whether p may use a route demanding a.
func (a Access) allows(p *auth.Principal) bool {
	if a.Public {
		return true
	}
	if p == nil {
		return false
	}
	return len(a.Roles) == 0 || p.HasAnyRole(a.Roles...)
}
