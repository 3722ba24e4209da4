package namingnode

import (
	"errors"

	"github.com/roma2023/FileStack/internal/fspath"
	"github.com/roma2023/FileStack/internal/rpcx"
	"github.com/roma2023/FileStack/internal/storagenode"
)

// ClientServiceSpec is the naming node's client-facing interface,
// bound on the well-known client port (pkg/filestack.DefaultClientPort).
var ClientServiceSpec = rpcx.InterfaceSpec{
	Name: "ClientService",
	Methods: []rpcx.MethodSpec{
		{Name: "IsDirectory", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
		{Name: "List", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
		{Name: "CreateFile", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
		{Name: "CreateDirectory", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
		{Name: "Delete", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
		{Name: "GetStorage", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
	},
}

// RegistrationServiceSpec is the naming node's registration-facing
// interface, bound on the well-known registration port. It is the same
// InterfaceSpec a storage node's Proxy is constructed against
// (storagenode.RegistrationServiceSpec carries the identical method
// shape); both names are kept so each package reads naturally from its
// own side of the wire.
var RegistrationServiceSpec = storagenode.RegistrationServiceSpec

// ClientHandlers builds the dispatch table rpcx.NewServer needs to
// serve ClientServiceSpec against ns.
func (ns *Namespace) ClientHandlers() map[string]rpcx.HandlerFunc {
	return map[string]rpcx.HandlerFunc{
		"IsDirectory": func(args []interface{}) (interface{}, error) {
			isDir, err := ns.IsDirectory(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return isDir, nil
		},
		"List": func(args []interface{}) (interface{}, error) {
			names, err := ns.List(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return names, nil
		},
		"CreateFile": func(args []interface{}) (interface{}, error) {
			ok, err := ns.CreateFile(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return ok, nil
		},
		"CreateDirectory": func(args []interface{}) (interface{}, error) {
			ok, err := ns.CreateDirectory(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return ok, nil
		},
		"Delete": func(args []interface{}) (interface{}, error) {
			ok, err := ns.Delete(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return ok, nil
		},
		"GetStorage": func(args []interface{}) (interface{}, error) {
			addr, err := ns.GetStorage(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return addr, nil
		},
	}
}

// RegistrationHandlers builds the dispatch table rpcx.NewServer needs to
// serve RegistrationServiceSpec against ns.
func (ns *Namespace) RegistrationHandlers() map[string]rpcx.HandlerFunc {
	return map[string]rpcx.HandlerFunc{
		"Register": func(args []interface{}) (interface{}, error) {
			dataAddr := args[0].(rpcx.Addr)
			controlAddr := args[1].(rpcx.Addr)
			pathArgs, _ := args[2].([]interface{})
			paths := make([]fspath.Path, len(pathArgs))
			for i, p := range pathArgs {
				paths[i] = p.(fspath.Path)
			}
			duplicates, err := ns.Register(dataAddr, controlAddr, paths)
			if err != nil {
				return nil, wrapError(err)
			}
			out := make([]interface{}, len(duplicates))
			for i, p := range duplicates {
				out[i] = p
			}
			return out, nil
		},
	}
}

func wrapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return &rpcx.RemoteError{Kind: rpcx.KindNotFound, Message: err.Error()}
	case errors.Is(err, ErrAlreadyRegistered):
		return &rpcx.RemoteError{Kind: rpcx.KindAlreadyRegistered, Message: err.Error()}
	default:
		return &rpcx.RemoteError{Kind: rpcx.KindIO, Message: err.Error()}
	}
}
