package liveclass

import "github.com/dilshad08/virtual-classroom/pkg/types"

// JoinPolicy decides which roles may join a classroom that is not
// live. A deployment rule, not a hardcoded role check: exempt roles get
// their membership recorded but no attendance log, since there is no
// session to attend.
type JoinPolicy struct {
	exempt map[types.Role]bool
}

// NewJoinPolicy builds a policy exempting the given roles from the
// class-must-be-live rule.
func NewJoinPolicy(exempt ...types.Role) JoinPolicy {
	p := JoinPolicy{exempt: make(map[types.Role]bool, len(exempt))}
	for _, r := range exempt {
		p.exempt[r] = true
	}
	return p
}

// DefaultJoinPolicy exempts teachers and admins, students must wait
// for the class to start.
func DefaultJoinPolicy() JoinPolicy {
	return NewJoinPolicy(types.RoleTeacher, types.RoleAdmin)
}

// Exempt reports whether role may join while the classroom is idle.
func (p JoinPolicy) Exempt(role types.Role) bool {
	return p.exempt[role]
}
