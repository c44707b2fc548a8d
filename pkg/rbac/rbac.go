// Package rbac implements the RBAC / Org-Context Guard (C10 in spec.md
// §4.10): bearer-token identity resolution, organization selection, and the
// fixed permission table from spec.md §6.5.
package rbac

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/resilientcore/execbridge/pkg/errs"
)

// Permission is one entry in the closed permission set (spec.md §4.10:
// "workflow:*, connections:*, integration:metadata:read, organization:*,
// billing:manage").
type Permission string

const (
	PermWorkflowCreate      Permission = "workflow:create"
	PermWorkflowView        Permission = "workflow:view"
	PermWorkflowEdit        Permission = "workflow:edit"
	PermWorkflowDeploy      Permission = "workflow:deploy"
	PermWorkflowCollaborate Permission = "workflow:collaborate"
	PermConnectionsRead     Permission = "connections:read"
	PermConnectionsWrite    Permission = "connections:write"
	PermMetadataRead        Permission = "integration:metadata:read"
	PermOrgViewUsage        Permission = "organization:view_usage"
	PermOrgManage           Permission = "organization:manage"
	PermBillingManage       Permission = "billing:manage"
)

// Role is one of the fixed membership roles (spec.md §3, §6.5).
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Table is the static compile-time role -> permissions mapping (spec.md
// §6.5, the "RBAC table (authoritative)"). owner holds every permission;
// admin is owner minus billing:manage; member and viewer are the explicit
// subsets named in §6.5. Unknown roles fall back to {workflow:view}.
var Table = map[Role][]Permission{
	RoleOwner: {
		PermWorkflowCreate, PermWorkflowView, PermWorkflowEdit, PermWorkflowDeploy, PermWorkflowCollaborate,
		PermConnectionsRead, PermConnectionsWrite,
		PermMetadataRead,
		PermOrgViewUsage, PermOrgManage,
		PermBillingManage,
	},
	RoleAdmin: {
		PermWorkflowCreate, PermWorkflowView, PermWorkflowEdit, PermWorkflowDeploy, PermWorkflowCollaborate,
		PermConnectionsRead, PermConnectionsWrite,
		PermMetadataRead,
		PermOrgViewUsage, PermOrgManage,
	},
	RoleMember: {
		PermWorkflowCreate, PermWorkflowView, PermWorkflowEdit, PermWorkflowDeploy, PermWorkflowCollaborate,
		PermConnectionsRead, PermConnectionsWrite,
		PermMetadataRead,
		PermOrgViewUsage,
	},
	RoleViewer: {
		PermWorkflowView,
		PermOrgViewUsage,
		PermMetadataRead,
	},
}

var fallbackPermissions = []Permission{PermWorkflowView}

// PermissionsFor returns the permission set for role, falling back to
// {workflow:view} for any role outside the closed set.
func PermissionsFor(role Role) []Permission {
	if perms, ok := Table[role]; ok {
		return perms
	}
	return fallbackPermissions
}

func hasPermission(perms []Permission, p Permission) bool {
	for _, candidate := range perms {
		if candidate == p {
			return true
		}
	}
	return false
}

// Membership is one organization membership carried in the bearer token's
// claims (spec.md §4.10 step 1: "list of organization memberships with role
// and status").
type Membership struct {
	OrganizationID string `json:"organizationId"`
	Role           Role   `json:"role"`
	Status         string `json:"status"`
}

// claims is the token payload shape this guard expects: subject plus the
// caller's organization memberships and default organization.
type claims struct {
	jwt.RegisteredClaims
	DefaultOrganizationID string       `json:"defaultOrganizationId"`
	Memberships           []Membership `json:"memberships"`
}

// Identity is what gets attached to the request context after a
// successful auth + org-selection pass (spec.md §4.10 step 3).
type Identity struct {
	UserID         string
	OrganizationID string
	Role           Role
	Permissions    []Permission
}

type ctxKey struct{}

// WithIdentity returns a context carrying identity, for tests and for the
// guard's own middleware.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFromContext retrieves the Identity attached by the guard's
// middleware, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Guard verifies bearer tokens and resolves organization context.
type Guard struct {
	secret []byte
}

// New builds a Guard that verifies HS256 bearer tokens against secret.
func New(secret string) *Guard {
	return &Guard{secret: []byte(secret)}
}

// Authenticate implements spec.md §4.10 steps 1-2: extract and verify the
// bearer token, then select the active organization (explicit header, else
// the user's default), rejecting if the user isn't a member of it.
func (g *Guard) Authenticate(bearerToken, requestedOrgID string) (Identity, error) {
	if bearerToken == "" {
		return Identity{}, errs.New(errs.KindAuth, http.StatusUnauthorized, "missing bearer token")
	}
	token := strings.TrimPrefix(bearerToken, "Bearer ")

	parsed := &claims{}
	_, err := jwt.ParseWithClaims(token, parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return Identity{}, errs.Wrap(errs.KindAuth, http.StatusUnauthorized, fmt.Errorf("token verification failed: %w", err))
	}

	userID := parsed.Subject
	if userID == "" {
		return Identity{}, errs.New(errs.KindAuth, http.StatusUnauthorized, "token missing sub claim")
	}

	orgID := requestedOrgID
	if orgID == "" {
		orgID = parsed.DefaultOrganizationID
	}
	if orgID == "" {
		return Identity{}, errs.New(errs.KindValidation, 400, "no organization context resolved")
	}

	var membership *Membership
	for i := range parsed.Memberships {
		if parsed.Memberships[i].OrganizationID == orgID {
			membership = &parsed.Memberships[i]
			break
		}
	}
	if membership == nil {
		return Identity{}, errs.New(errs.KindAuth, http.StatusForbidden, "user is not a member of organization %q", orgID)
	}

	return Identity{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           membership.Role,
		Permissions:    PermissionsFor(membership.Role),
	}, nil
}

// RequirePermission implements spec.md §4.10 step 4: reject with 403 if p
// is not among the caller's permissions.
func RequirePermission(identity Identity, p Permission) error {
	if !hasPermission(identity.Permissions, p) {
		return errs.New(errs.KindAuth, http.StatusForbidden, "missing required permission: %s", p)
	}
	return nil
}

// RequireOrganizationContext implements spec.md §4.10 step 5: reject if no
// org is resolved or the membership's status isn't "active".
func RequireOrganizationContext(identity Identity, status string) error {
	if identity.OrganizationID == "" {
		return errs.New(errs.KindAuth, http.StatusForbidden, "no organization context")
	}
	if status != "active" {
		return errs.New(errs.KindAuth, http.StatusForbidden, "organization membership is not active")
	}
	return nil
}

// Authenticator returns chi-compatible middleware implementing spec.md
// §4.10 steps 1-3: it verifies the bearer token, selects the organization
// from X-Organization-Id (or the token's default), and attaches the
// resulting Identity to the request context. Requests that fail any step
// are rejected before reaching the wrapped handler.
func (g *Guard) Authenticator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := g.Authenticate(r.Header.Get("Authorization"), r.Header.Get("X-Organization-Id"))
			if err != nil {
				writeRBACError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequirePermissionMiddleware returns chi-compatible middleware
// implementing spec.md §4.10 step 4 against the Identity attached by
// Authenticator.
func RequirePermissionMiddleware(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err := RequirePermission(identity, p); err != nil {
				writeRBACError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRBACError(w http.ResponseWriter, err error) {
	status := http.StatusForbidden
	var coreErr *errs.Error
	if asErr, ok := err.(*errs.Error); ok {
		coreErr = asErr
	}
	if coreErr != nil && coreErr.StatusCode != 0 {
		status = coreErr.StatusCode
	}
	http.Error(w, errs.GetErrorMessage(err), status)
}
