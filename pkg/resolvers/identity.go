package resolvers

import (
	"os"
	"os/user"
	"strconv"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// NewIdentityResolver resolves the identity map describing the user the
// collection run executes as.
func NewIdentityResolver() (*facts.Resolver, error) {
	r, err := facts.NewResolver("identity", []string{"identity"})
	if err != nil {
		return nil, err
	}

	err = r.Add(facts.ResolutionSpec{
		Fact: "identity",
		Produce: func(*facts.Collection, string) (value.Value, error) {
			uid := os.Getuid()
			gid := os.Getgid()

			m := value.NewMap().
				Put("uid", value.Integer(int64(uid))).
				Put("gid", value.Integer(int64(gid))).
				Put("privileged", value.Boolean(uid == 0))

			if u, err := user.Current(); err == nil {
				m.Put("user", value.String(u.Username))
				if g, err := user.LookupGroupId(strconv.Itoa(gid)); err == nil {
					m.Put("group", value.String(g.Name))
				}
			}
			return m, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
