package jwt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Well-known claim types carried in a ClaimSet.
const (
	ClaimSubject = "sub"
	ClaimUserID  = "uid"
	ClaimEmail   = "email"
	ClaimName    = "name"
)

// registered claims are written by the codec and may not appear in a ClaimSet.
var reservedClaims = map[string]struct{}{
	"jti": {},
	"exp": {},
	"iat": {},
	"nbf": {},
	"iss": {},
	"aud": {},
}

// Claim is one (type, value) assertion about a principal.
type Claim struct {
	Type  string
	Value string
}

// ClaimSet is an ordered collection of claims built for a single issuance.
//
// A type may repeat; repeated values are encoded as a JSON array in the
// order they were added.
type ClaimSet []Claim

// Add returns a copy of the set with the claim appended.
func (c ClaimSet) Add(claimType, value string) ClaimSet {
	out := make(ClaimSet, len(c), len(c)+1)
	copy(out, c)
	return append(out, Claim{Type: claimType, Value: value})
}

// First returns the first value recorded for claimType.
func (c ClaimSet) First(claimType string) (string, bool) {
	for _, claim := range c {
		if claim.Type == claimType {
			return claim.Value, true
		}
	}
	return "", false
}

// Values returns every value recorded for claimType, in order.
func (c ClaimSet) Values(claimType string) []string {
	var out []string
	for _, claim := range c {
		if claim.Type == claimType {
			out = append(out, claim.Value)
		}
	}
	return out
}

// Clone returns an independent copy of the set.
func (c ClaimSet) Clone() ClaimSet {
	if c == nil {
		return nil
	}
	out := make(ClaimSet, len(c))
	copy(out, c)
	return out
}

// Equal reports whether both sets carry the same types in the same order of
// first appearance, each with the same values in the same order. This is the
// equality preserved by an encode/decode round trip.
func (c ClaimSet) Equal(other ClaimSet) bool {
	a, b := c.grouped(), other.grouped()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].claimType != b[i].claimType || len(a[i].values) != len(b[i].values) {
			return false
		}
		for j := range a[i].values {
			if a[i].values[j] != b[i].values[j] {
				return false
			}
		}
	}
	return true
}

type claimGroup struct {
	claimType string
	values    []string
}

func (c ClaimSet) grouped() []claimGroup {
	groups := make([]claimGroup, 0, len(c))
	index := make(map[string]int, len(c))
	for _, claim := range c {
		i, ok := index[claim.Type]
		if !ok {
			i = len(groups)
			index[claim.Type] = i
			groups = append(groups, claimGroup{claimType: claim.Type})
		}
		groups[i].values = append(groups[i].values, claim.Value)
	}
	return groups
}

func (c ClaimSet) validate() error {
	counts := make(map[string]int, len(c))
	for _, claim := range c {
		if strings.TrimSpace(claim.Type) == "" {
			return errors.New("claim type is empty")
		}
		if _, reserved := reservedClaims[claim.Type]; reserved {
			return fmt.Errorf("claim type %q is reserved", claim.Type)
		}
		counts[claim.Type]++
	}
	if counts[ClaimSubject] > 1 {
		return errors.New("subject claim must be single-valued")
	}
	if counts[ClaimUserID] > 1 {
		return errors.New("user id claim must be single-valued")
	}
	return nil
}

// withSubject returns a copy of c that carries a sub claim. A missing
// subject is taken from uid; a set with neither cannot identify its user.
func withSubject(c ClaimSet) (ClaimSet, error) {
	sub, hasSub := c.First(ClaimSubject)
	uid, _ := c.First(ClaimUserID)
	if sub == "" && uid == "" {
		return nil, errors.New("claims carry neither subject nor user id")
	}
	if hasSub {
		return c.Clone(), nil
	}
	return append(ClaimSet{{Type: ClaimSubject, Value: uid}}, c...), nil
}

// tokenClaims is the JSON payload of an access token. Caller claims are
// written first, in ClaimSet order, followed by the registered claims.
type tokenClaims struct {
	jwt.RegisteredClaims
	set ClaimSet
}

func (c tokenClaims) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		name, err := json.Marshal(key)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(raw)
		return nil
	}

	for _, g := range c.set.grouped() {
		var value any = g.values[0]
		if len(g.values) > 1 {
			value = g.values
		}
		if err := write(g.claimType, value); err != nil {
			return nil, err
		}
	}
	if c.ID != "" {
		if err := write("jti", c.ID); err != nil {
			return nil, err
		}
	}
	if c.IssuedAt != nil {
		if err := write("iat", c.IssuedAt); err != nil {
			return nil, err
		}
	}
	if c.ExpiresAt != nil {
		if err := write("exp", c.ExpiresAt); err != nil {
			return nil, err
		}
	}
	if c.Issuer != "" {
		if err := write("iss", c.Issuer); err != nil {
			return nil, err
		}
	}
	if len(c.Audience) > 0 {
		if err := write("aud", c.Audience); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *tokenClaims) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("claims must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("claim name must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		switch key {
		case "jti":
			err = json.Unmarshal(raw, &c.ID)
		case "iss":
			err = json.Unmarshal(raw, &c.Issuer)
		case "aud":
			err = json.Unmarshal(raw, &c.Audience)
		case "iat":
			c.IssuedAt, err = decodeNumericDate(raw)
		case "exp":
			c.ExpiresAt, err = decodeNumericDate(raw)
		case "nbf":
			c.NotBefore, err = decodeNumericDate(raw)
		default:
			var values []string
			values, err = claimValues(raw)
			if err == nil && key == ClaimSubject {
				if len(values) != 1 {
					return errors.New("subject claim must be single-valued")
				}
				c.Subject = values[0]
			}
			for _, v := range values {
				c.set = append(c.set, Claim{Type: key, Value: v})
			}
		}
		if err != nil {
			return fmt.Errorf("claim %q: %w", key, err)
		}
	}

	_, err = dec.Token()
	return err
}

func decodeNumericDate(raw json.RawMessage) (*jwt.NumericDate, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	date := new(jwt.NumericDate)
	if err := date.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return date, nil
}

func claimValues(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			v, err := scalarValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	v, err := scalarValue(trimmed)
	if err != nil {
		return nil, err
	}
	return []string{v}, nil
}

func scalarValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errors.New("empty claim value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", errors.New("nested claim values are not supported")
	default:
		return string(trimmed), nil
	}
}
