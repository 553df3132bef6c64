// Package cmdtemplate parses and executes the small compound-write
// command language carried by catalog.ControlConfig.CommandTemplate,
// e.g. "writeSingle(1,12290,{});mwrite(1,12318,65531,4)".
package cmdtemplate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedTemplate is returned for any template that doesn't match
// the "name(args)" call grammar, or whose arguments don't parse.
var ErrMalformedTemplate = fmt.Errorf("cmdtemplate: malformed template")

// CommandExecutor is the transport-side sink a parsed Program runs
// against. Implemented by the Modbus driver.
type CommandExecutor interface {
	WriteSingleRegister(ctx context.Context, deviceID int, address uint16, value uint16) error
	MaskWriteRegister(ctx context.Context, deviceID int, address uint16, orMask, andMask uint16) error
}

// CallKind distinguishes the two supported call shapes.
type CallKind int

const (
	CallWriteSingle CallKind = iota
	CallMaskWrite
)

// Call is one parsed function call within a Program.
type Call struct {
	Kind     CallKind
	DeviceID int
	Address  uint16
	// For CallWriteSingle, OrMask carries the literal value unless
	// HasPlaceholder is true, in which case it is substituted at
	// execution time. For CallMaskWrite, OrMask/AndMask are always
	// literal (masks are not substitutable per the template grammar).
	OrMask         uint16
	AndMask        uint16
	HasPlaceholder bool
}

// Program is a parsed, `;`-separated sequence of calls.
type Program struct {
	calls []Call
}

var callPattern = regexp.MustCompile(`^(\w+)\((.+)\)$`)

// Parse parses a command template string. The template embeds a
// single `{}` placeholder substituted with the caller's value at
// Execute time; it is either one call or several `;`-separated calls.
func Parse(template string) (Program, error) {
	var calls []Call
	for _, raw := range strings.Split(template, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		call, err := parseCall(raw)
		if err != nil {
			return Program{}, err
		}
		calls = append(calls, call)
	}
	if len(calls) == 0 {
		return Program{}, fmt.Errorf("%w: %q has no calls", ErrMalformedTemplate, template)
	}
	return Program{calls: calls}, nil
}

func parseCall(raw string) (Call, error) {
	m := callPattern.FindStringSubmatch(raw)
	if m == nil {
		return Call{}, fmt.Errorf("%w: cannot parse call %q", ErrMalformedTemplate, raw)
	}
	name, argsStr := m[1], strings.TrimSpace(m[2])
	argsStr = strings.TrimPrefix(argsStr, "[")
	argsStr = strings.TrimSuffix(argsStr, "]")

	rawArgs := strings.Split(argsStr, ",")
	hasPlaceholder := false
	args := make([]int64, 0, len(rawArgs))
	placeholderIdx := -1
	for i, a := range rawArgs {
		a = strings.TrimSpace(a)
		if a == "{}" {
			hasPlaceholder = true
			placeholderIdx = i
			args = append(args, 0)
			continue
		}
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return Call{}, fmt.Errorf("%w: argument %q in %q: %v", ErrMalformedTemplate, a, raw, err)
		}
		args = append(args, v)
	}

	switch name {
	case "writeSingle":
		if len(args) != 3 {
			return Call{}, fmt.Errorf("%w: writeSingle expects 3 args, got %d: %q", ErrMalformedTemplate, len(args), raw)
		}
		return Call{
			Kind:           CallWriteSingle,
			DeviceID:       int(args[0]),
			Address:        uint16(args[1]),
			OrMask:         uint16(args[2]),
			HasPlaceholder: hasPlaceholder && placeholderIdx == 2,
		}, nil
	case "mwrite":
		if len(args) != 4 {
			return Call{}, fmt.Errorf("%w: mwrite expects 4 args, got %d: %q", ErrMalformedTemplate, len(args), raw)
		}
		return Call{
			Kind:     CallMaskWrite,
			DeviceID: int(args[0]),
			Address:  uint16(args[1]),
			OrMask:   uint16(args[2]),
			AndMask:  uint16(args[3]),
		}, nil
	default:
		return Call{}, fmt.Errorf("%w: unknown function %q", ErrMalformedTemplate, name)
	}
}

// Execute runs every call in the program in order, substituting value
// for each call's {} placeholder. Rounding a native setpoint to uint16
// is the caller's job.
func (p Program) Execute(ctx context.Context, exec CommandExecutor, value uint16) error {
	for _, c := range p.calls {
		switch c.Kind {
		case CallWriteSingle:
			v := c.OrMask
			if c.HasPlaceholder {
				v = value
			}
			if err := exec.WriteSingleRegister(ctx, c.DeviceID, c.Address, v); err != nil {
				return err
			}
		case CallMaskWrite:
			if err := exec.MaskWriteRegister(ctx, c.DeviceID, c.Address, c.OrMask, c.AndMask); err != nil {
				return err
			}
		}
	}
	return nil
}
