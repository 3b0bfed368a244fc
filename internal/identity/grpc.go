// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package identity

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"

	apperrors "classpass/cli/internal/errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// IdentityServiceName is the fully qualified gRPC service name.
const IdentityServiceName = "classpass.identity.v1.IdentityService"

const verifyMethod = "/" + IdentityServiceName + "/Verify"

// GRPC verifies credentials against a remote identity service.
// Messages are google.protobuf.Struct values with the same field names as the
// persisted session record, so no generated stubs are needed on either side.
type GRPC struct {
	conn *grpc.ClientConn
}

// DialGRPC creates a client for addr.
// "grpc://host:port" selects a plaintext connection; "grpcs://host[:port]" or a bare
// address uses TLS with the host as SNI and port 443 by default.
func DialGRPC(addr string, opts ...grpc.DialOption) (*GRPC, error) {
	target, creds := grpcTarget(addr)
	all := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent("classpass-cli/1.0"),
	}, opts...)
	conn, err := grpc.NewClient(target, all...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ProviderUnavailable, "dial identity service", err)
	}
	return &GRPC{conn: conn}, nil
}

func grpcTarget(addr string) (string, credentials.TransportCredentials) {
	if rest, ok := strings.CutPrefix(addr, "grpc://"); ok {
		return rest, insecure.NewCredentials()
	}
	addr = strings.TrimPrefix(addr, "grpcs://")

	// Derive SNI and ensure default port if missing
	host := addr
	target := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	} else {
		target = net.JoinHostPort(addr, "443")
	}
	return target, credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
}

// Close releases the connection.
func (g *GRPC) Close() error {
	return g.conn.Close()
}

// Verify implements Provider.
func (g *GRPC) Verify(ctx context.Context, email, password string) (Identity, error) {
	req, err := structpb.NewStruct(map[string]any{
		"email":    NormalizeEmail(email),
		"password": password,
	})
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.InvalidInput, "encode request", err)
	}
	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, verifyMethod, req, resp); err != nil {
		return Identity{}, fromStatus(ctx, err)
	}
	return withDerivedAvatar(identityFromStruct(resp)), nil
}

func fromStatus(ctx context.Context, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return classify(ctx, "grpc verify", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied, codes.NotFound:
		return rejected()
	case codes.InvalidArgument:
		return apperrors.New(apperrors.InvalidInput, st.Message())
	case codes.DeadlineExceeded, codes.Canceled:
		return apperrors.Wrap(apperrors.Timeout, "grpc verify", err)
	default:
		return apperrors.Wrap(apperrors.ProviderUnavailable, "grpc verify", err)
	}
}

func identityFromStruct(s *structpb.Struct) Identity {
	f := s.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }
	return Identity{
		ID:          str("id"),
		DisplayName: str("displayName"),
		Email:       str("email"),
		Role:        Role(str("role")),
		AvatarURL:   str("avatarUrl"),
	}
}

func identityToStruct(id Identity) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":          id.ID,
		"displayName": id.DisplayName,
		"email":       id.Email,
		"role":        string(id.Role),
		"avatarUrl":   id.AvatarURL,
	})
}

// identityServer is the handler type registered with grpc.Server.
type identityServer interface {
	verify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type providerServer struct {
	p Provider
}

func (s providerServer) verify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	email, password := f["email"].GetStringValue(), f["password"].GetStringValue()
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	id, err := s.p.Verify(ctx, email, password)
	if err != nil {
		return nil, toStatus(err)
	}
	return identityToStruct(id)
}

func toStatus(err error) error {
	switch apperrors.KindOf(err) {
	case apperrors.InvalidCredentials:
		return status.Error(codes.Unauthenticated, "email or password is incorrect")
	case apperrors.InvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperrors.Timeout:
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*identityServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Verify",
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(identityServer).verify(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: verifyMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return srv.(identityServer).verify(ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}},
	Metadata: "classpass/identity/v1/identity.proto",
}

// RegisterIdentityServer exposes p as the identity service on s.
func RegisterIdentityServer(s grpc.ServiceRegistrar, p Provider) {
	s.RegisterService(&identityServiceDesc, providerServer{p: p})
}

var _ Provider = (*GRPC)(nil)
