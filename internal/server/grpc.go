package server

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"google.golang.org/grpc"

	_ "github.com/go-tangra/go-tangra-license-inventory/internal/codec"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "inventory.v1.InventoryService"

// Dispatcher is implemented by Registry. It is the handler type of the gRPC
// service.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, payload json.RawMessage) *Response
}

// MethodName converts an operation name such as "inventory.attachFile" into
// its gRPC method name, "InventoryAttachFile".
func MethodName(operation string) string {
	var b strings.Builder
	for _, part := range strings.Split(operation, ".") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// FullMethod returns the gRPC path for operation.
func FullMethod(operation string) string {
	return "/" + ServiceName + "/" + MethodName(operation)
}

// ServiceDesc builds the gRPC service description with one unary method per
// registered operation. Requests and replies travel through the JSON codec.
func ServiceDesc(reg *Registry) *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*Dispatcher)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "inventory/v1/inventory.json",
	}
	for _, name := range reg.Names() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: MethodName(name),
			Handler:    unaryHandler(name),
		})
	}
	return desc
}

func unaryHandler(operation string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		var payload json.RawMessage
		if err := dec(&payload); err != nil {
			return nil, err
		}
		d := srv.(Dispatcher)
		if interceptor == nil {
			return d.Dispatch(ctx, operation, payload), nil
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(operation),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return d.Dispatch(ctx, operation, req.(json.RawMessage)), nil
		}
		return interceptor(ctx, payload, info, handler)
	}
}
