package sandbox

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
)

// Host operation names exposed into the interpreter namespace. The enforcer
// hides these per policy; scripts under a restrictive policy see them fail as
// plain unresolved references.
const (
	OpFileRead   = "file_read"
	OpFileWrite  = "file_write"
	OpFileExists = "file_exists"
	OpFileDelete = "file_delete"
	OpDirList    = "dir_list"
	OpHTTPGet    = "http_get"
	OpHTTPPost   = "http_post"
	OpNetLookup  = "net_lookup"
	OpProcExec   = "proc_exec"
	OpEvalSource = "eval_source"
	OpInterpNew  = "interp_new"
)

// Capability categories, used by the enforcer to map policy flags onto
// operation names.
var (
	fileSystemOps = []string{OpFileRead, OpFileWrite, OpFileExists, OpFileDelete, OpDirList}
	networkOps    = []string{OpHTTPGet, OpHTTPPost, OpNetLookup}
	processOps    = []string{OpProcExec}
	reflectionOps = []string{OpEvalSource}
	spawnOps      = []string{OpInterpNew}
)

// httpClient is shared by the network operations. Individual runs are already
// bounded by the execution deadline; this is a backstop for leaked sockets.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// runState carries per-execution settings into host operations. The
// interpreter is exclusively owned while active, so mutation between runs is
// safe without locking. ctx is the run's deadline context; host operations
// that block must observe it so the deadline firing cancels them too.
type runState struct {
	ctx     context.Context
	workDir string
	env     map[string]string
}

func (rs *runState) context() context.Context {
	if rs.ctx == nil {
		return context.Background()
	}
	return rs.ctx
}

func (rs *runState) resolve(path string) string {
	if filepath.IsAbs(path) || rs.workDir == "" {
		return path
	}
	return filepath.Join(rs.workDir, path)
}

// opError wraps a host-side failure as a tengo error value so scripts can
// branch on it instead of aborting.
func opError(format string, args ...interface{}) tengo.Object {
	return &tengo.Error{Value: &tengo.String{Value: fmt.Sprintf(format, args...)}}
}

func stringArg(args []tengo.Object, i int) (string, error) {
	if i >= len(args) {
		return "", tengo.ErrWrongNumArguments
	}
	s, ok := tengo.ToString(args[i])
	if !ok {
		return "", tengo.ErrInvalidArgumentType{Name: fmt.Sprintf("arg[%d]", i), Expected: "string"}
	}
	return s, nil
}

// newHostOps builds the full host operation namespace for a fresh
// interpreter. All operations are present in base mode; hardening happens
// afterwards in the enforcer.
func newHostOps(rs *runState) map[string]tengo.Object {
	ops := map[string]tengo.Object{
		OpFileRead: &tengo.UserFunction{Name: OpFileRead, Value: func(args ...tengo.Object) (tengo.Object, error) {
			path, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(rs.resolve(path))
			if err != nil {
				return opError("file_read: %v", err), nil
			}
			return &tengo.String{Value: string(data)}, nil
		}},
		OpFileWrite: &tengo.UserFunction{Name: OpFileWrite, Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			path, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			data, err := stringArg(args, 1)
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(rs.resolve(path), []byte(data), 0644); err != nil {
				return opError("file_write: %v", err), nil
			}
			return tengo.TrueValue, nil
		}},
		OpFileExists: &tengo.UserFunction{Name: OpFileExists, Value: func(args ...tengo.Object) (tengo.Object, error) {
			path, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			if _, err := os.Stat(rs.resolve(path)); err != nil {
				return tengo.FalseValue, nil
			}
			return tengo.TrueValue, nil
		}},
		OpFileDelete: &tengo.UserFunction{Name: OpFileDelete, Value: func(args ...tengo.Object) (tengo.Object, error) {
			path, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			if err := os.Remove(rs.resolve(path)); err != nil {
				return opError("file_delete: %v", err), nil
			}
			return tengo.TrueValue, nil
		}},
		OpDirList: &tengo.UserFunction{Name: OpDirList, Value: func(args ...tengo.Object) (tengo.Object, error) {
			path, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			entries, err := os.ReadDir(rs.resolve(path))
			if err != nil {
				return opError("dir_list: %v", err), nil
			}
			arr := &tengo.Array{}
			for _, e := range entries {
				arr.Value = append(arr.Value, &tengo.String{Value: e.Name()})
			}
			return arr, nil
		}},
		OpHTTPGet: &tengo.UserFunction{Name: OpHTTPGet, Value: func(args ...tengo.Object) (tengo.Object, error) {
			url, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(rs.context(), http.MethodGet, url, nil)
			if err != nil {
				return opError("http_get: %v", err), nil
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return opError("http_get: %v", err), nil
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return opError("http_get: %v", err), nil
			}
			return &tengo.String{Value: string(body)}, nil
		}},
		OpHTTPPost: &tengo.UserFunction{Name: OpHTTPPost, Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			url, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			body, err := stringArg(args, 1)
			if err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(rs.context(), http.MethodPost, url, strings.NewReader(body))
			if err != nil {
				return opError("http_post: %v", err), nil
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := httpClient.Do(req)
			if err != nil {
				return opError("http_post: %v", err), nil
			}
			defer resp.Body.Close()
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return opError("http_post: %v", err), nil
			}
			return &tengo.String{Value: string(data)}, nil
		}},
		OpNetLookup: &tengo.UserFunction{Name: OpNetLookup, Value: func(args ...tengo.Object) (tengo.Object, error) {
			host, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			addrs, err := net.DefaultResolver.LookupHost(rs.context(), host)
			if err != nil {
				return opError("net_lookup: %v", err), nil
			}
			arr := &tengo.Array{}
			for _, a := range addrs {
				arr.Value = append(arr.Value, &tengo.String{Value: a})
			}
			return arr, nil
		}},
		OpProcExec: &tengo.UserFunction{Name: OpProcExec, Value: func(args ...tengo.Object) (tengo.Object, error) {
			name, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			cmdArgs := make([]string, 0, len(args)-1)
			for i := 1; i < len(args); i++ {
				a, err := stringArg(args, i)
				if err != nil {
					return nil, err
				}
				cmdArgs = append(cmdArgs, a)
			}
			cmd := exec.CommandContext(rs.context(), name, cmdArgs...)
			cmd.Dir = rs.workDir
			for k, v := range rs.env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
			out, err := cmd.CombinedOutput()
			if err != nil {
				return opError("proc_exec: %v: %s", err, out), nil
			}
			return &tengo.String{Value: string(out)}, nil
		}},
		OpEvalSource: &tengo.UserFunction{Name: OpEvalSource, Value: func(args ...tengo.Object) (tengo.Object, error) {
			src, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			return evalNested(rs.context(), src)
		}},
		OpInterpNew: &tengo.UserFunction{Name: OpInterpNew, Value: func(args ...tengo.Object) (tengo.Object, error) {
			src, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			return evalNested(rs.context(), src)
		}},
	}
	return ops
}

// evalNested runs a source string in a bare nested script with compute-only
// modules and no host operations. Both dynamic evaluation and sub-interpreter
// creation route through here; neither regains hidden capabilities, and the
// nested VM runs under the outer run's deadline so it cannot outlive it.
func evalNested(ctx context.Context, src string) (tengo.Object, error) {
	s := tengo.NewScript([]byte(src))
	s.SetImports(safeModuleMap())
	compiled, err := s.Compile()
	if err != nil {
		return opError("eval: %v", err), nil
	}
	if err := compiled.RunContext(ctx); err != nil {
		return opError("eval: %v", err), nil
	}
	for _, name := range []string{"output", "result"} {
		if v := compiled.Get(name); v != nil && !v.IsUndefined() {
			obj, err := tengo.FromInterface(v.Value())
			if err != nil {
				return opError("eval: %v", err), nil
			}
			return obj, nil
		}
	}
	return tengo.UndefinedValue, nil
}
