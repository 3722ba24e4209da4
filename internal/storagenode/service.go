package storagenode

import (
	"errors"

	"github.com/roma2023/FileStack/internal/fspath"
	"github.com/roma2023/FileStack/internal/rpcx"
)

// DataServiceSpec and ControlServiceSpec are the two RPC interfaces a
// storage node serves, per the specification's data/control split.
var (
	DataServiceSpec = rpcx.InterfaceSpec{
		Name: "DataService",
		Methods: []rpcx.MethodSpec{
			{Name: "Size", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
			{Name: "Read", ParamTypes: []rpcx.Tag{rpcx.TagPath, rpcx.TagInt64, rpcx.TagInt64}},
			{Name: "Write", ParamTypes: []rpcx.Tag{rpcx.TagPath, rpcx.TagInt64, rpcx.TagBytes}},
		},
	}
	ControlServiceSpec = rpcx.InterfaceSpec{
		Name: "ControlService",
		Methods: []rpcx.MethodSpec{
			{Name: "Create", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
			{Name: "Delete", ParamTypes: []rpcx.Tag{rpcx.TagPath}},
		},
	}
)

// DataHandlers builds the dispatch table rpcx.NewServer needs to serve
// DataServiceSpec against n.
func (n *Node) DataHandlers() map[string]rpcx.HandlerFunc {
	return map[string]rpcx.HandlerFunc{
		"Size": func(args []interface{}) (interface{}, error) {
			size, err := n.Size(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return size, nil
		},
		"Read": func(args []interface{}) (interface{}, error) {
			data, err := n.Read(args[0].(fspath.Path), args[1].(int64), args[2].(int64))
			if err != nil {
				return nil, wrapError(err)
			}
			return data, nil
		},
		"Write": func(args []interface{}) (interface{}, error) {
			data, _ := args[2].([]byte)
			if err := n.Write(args[0].(fspath.Path), args[1].(int64), data); err != nil {
				return nil, wrapError(err)
			}
			return nil, nil
		},
	}
}

// ControlHandlers builds the dispatch table rpcx.NewServer needs to
// serve ControlServiceSpec against n.
func (n *Node) ControlHandlers() map[string]rpcx.HandlerFunc {
	return map[string]rpcx.HandlerFunc{
		"Create": func(args []interface{}) (interface{}, error) {
			ok, err := n.Create(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return ok, nil
		},
		"Delete": func(args []interface{}) (interface{}, error) {
			ok, err := n.Delete(args[0].(fspath.Path))
			if err != nil {
				return nil, wrapError(err)
			}
			return ok, nil
		},
	}
}

// wrapError maps a Node error onto the taxonomy rpcx's dispatch loop
// turns into a wire remote-failure envelope.
func wrapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return &rpcx.RemoteError{Kind: rpcx.KindNotFound, Message: err.Error()}
	case errors.Is(err, ErrBounds):
		return &rpcx.RemoteError{Kind: rpcx.KindBounds, Message: err.Error()}
	default:
		return &rpcx.RemoteError{Kind: rpcx.KindIO, Message: err.Error()}
	}
}
