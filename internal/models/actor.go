package models

// ActorKind distinguishes administrators from students acting on the API.
type ActorKind string

const (
	ActorAdmin   ActorKind = "ADMIN"
	ActorStudent ActorKind = "STUDENT"
)

// Actor is the authenticated caller passed explicitly into every core operation.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
	Role UserRole  `json:"role"`
}

// IsAdmin reports whether the actor may perform administrative operations.
func (a Actor) IsAdmin() bool {
	return a.Kind == ActorAdmin
}

// Owns reports whether the actor is the student identified by studentID.
func (a Actor) Owns(studentID string) bool {
	return a.Kind == ActorStudent && a.ID != "" && a.ID == studentID
}

// ActorFromClaims maps token claims onto an Actor.
func ActorFromClaims(claims *JWTClaims) (Actor, bool) {
	if claims == nil || claims.UserID == "" {
		return Actor{}, false
	}
	switch {
	case claims.Role.IsAdmin():
		return Actor{Kind: ActorAdmin, ID: claims.UserID, Role: claims.Role}, true
	case claims.Role == RoleStudent:
		return Actor{Kind: ActorStudent, ID: claims.UserID, Role: claims.Role}, true
	default:
		return Actor{}, false
	}
}
