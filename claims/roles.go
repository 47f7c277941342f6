package claims

import (
	"encoding/json"
	"strings"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// RolePrefix marks a granted authority that names a role.
const RolePrefix = "ROLE_"

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole extracts the role from the value of a token's role claim.
//
// The claim may be:
//   - a list of granted-authority objects: [{"authority":"ROLE_TEACHER"}]
//   - a list of strings: ["ROLE_TEACHER"]
//   - a single string: "ROLE_TEACHER"
//   - a string holding the JSON encoding of either list form
//
// The first authority carrying RolePrefix wins. The prefix is stripped and the
// rest must be one of the known roles.
func ParseRole(claim any) (Role, error) {
	if claim == nil {
		return "", errors.Wrap(ErrMalformedToken, "missing role claim")
	}

	authorities, err := authoritiesOf(claim, true)
	if err != nil {
		return "", err
	}

	for _, authority := range authorities {
		if !strings.HasPrefix(authority, RolePrefix) {
			continue
		}
		role := Role(strings.TrimPrefix(authority, RolePrefix))
		if !role.Valid() {
			return "", errors.Wrapf(ErrMalformedToken, "unknown role %q", role)
		}
		return role, nil
	}
	return "", errors.Wrap(ErrMalformedToken, "no role authority in role claim")
}

// authoritiesOf flattens the supported claim shapes into authority strings.
// A string is only unpacked as embedded JSON once.
func authoritiesOf(claim any, unpack bool) ([]string, error) {
	switch v := claim.(type) {
	case string:
		s := strings.TrimSpace(v)
		if unpack && (strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")) {
			var embedded any
			if err := json.Unmarshal([]byte(s), &embedded); err != nil {
				return nil, errors.Wrapf(ErrMalformedToken, "role claim: %v", err)
			}
			return authoritiesOf(embedded, false)
		}
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil

	case map[string]any:
		if authority, ok := v["authority"].(string); ok {
			return []string{authority}, nil
		}
		return nil, nil

	case []any:
		if len(v) > 0 {
			if _, ok := v[0].(string); ok {
				return utils.ToStringSlice(v), nil
			}
		}
		authorities := make([]string, 0, len(v))
		for _, item := range v {
			if a, ok := item.(map[string]any); ok {
				if authority, ok := a["authority"].(string); ok {
					authorities = append(authorities, authority)
				}
			}
		}
		return authorities, nil

	case []string:
		return v, nil
	}
	return nil, errors.Wrapf(ErrMalformedToken, "unsupported role claim type %T", claim)
}
