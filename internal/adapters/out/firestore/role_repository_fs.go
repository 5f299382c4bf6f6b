// internal/adapters/out/firestore/role_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"koifarm/internal/domain/access"
)

// RoleRepositoryFS reads the back-office role of a Firebase user.
// Document: users/{uid} with a string field "role".
type RoleRepositoryFS struct {
	Client *firestore.Client
}

func NewRoleRepositoryFS(client *firestore.Client) *RoleRepositoryFS {
	return &RoleRepositoryFS{Client: client}
}

// RoleByUID returns the stored role; a missing doc or field resolves to guest.
func (r *RoleRepositoryFS) RoleByUID(ctx context.Context, uid string) (access.Role, error) {
	if r == nil || r.Client == nil {
		return access.RoleGuest, errors.New("role_repository_fs: firestore client is nil")
	}
	id := strings.TrimSpace(uid)
	if id == "" {
		return access.RoleGuest, errors.New("role_repository_fs: uid is empty")
	}

	snap, err := r.Client.Collection("users").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return access.RoleGuest, nil
		}
		return access.RoleGuest, err
	}

	return roleFromData(snap.Data()), nil
}

func roleFromData(data map[string]any) access.Role {
	if data == nil {
		return access.RoleGuest
	}
	s, _ := data["role"].(string)
	return access.ResolveRole(s)
}
