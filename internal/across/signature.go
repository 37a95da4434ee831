package across

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const maxIndexedArgs = 3

// CompileSignature turns a human-readable event signature such as
// "Deposit(address indexed owner,uint256 amount)" into an ABI event.
// Tuple arguments are not supported.
func CompileSignature(signature string) (abi.Event, error) {
	signature = strings.TrimSpace(signature)
	open := strings.Index(signature, "(")
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return abi.Event{}, fmt.Errorf("malformed event signature: %q", signature)
	}

	name := strings.TrimSpace(signature[:open])
	body := strings.TrimSpace(signature[open+1 : len(signature)-1])

	args := make(abi.Arguments, 0)
	if body != "" {
		indexed := 0
		for i, part := range strings.Split(body, ",") {
			arg, err := parseArgument(part, i)
			if err != nil {
				return abi.Event{}, fmt.Errorf("%s: %w", name, err)
			}
			if arg.Indexed {
				indexed++
			}
			args = append(args, arg)
		}
		if indexed > maxIndexedArgs {
			return abi.Event{}, fmt.Errorf("%s: %d indexed arguments, max %d", name, indexed, maxIndexedArgs)
		}
	}

	return abi.NewEvent(name, name, false, args), nil
}

func parseArgument(part string, position int) (abi.Argument, error) {
	fields := strings.Fields(part)
	if len(fields) == 0 {
		return abi.Argument{}, fmt.Errorf("empty argument at position %d", position)
	}
	if strings.ContainsAny(fields[0], "()") {
		return abi.Argument{}, fmt.Errorf("tuple argument at position %d is not supported", position)
	}

	typ, err := abi.NewType(fields[0], "", nil)
	if err != nil {
		return abi.Argument{}, fmt.Errorf("argument %d type %q: %w", position, fields[0], err)
	}

	arg := abi.Argument{Type: typ}
	rest := fields[1:]
	if len(rest) > 0 && rest[0] == "indexed" {
		arg.Indexed = true
		rest = rest[1:]
	}

	switch len(rest) {
	case 0:
		arg.Name = fmt.Sprintf("arg%d", position)
	case 1:
		arg.Name = rest[0]
	default:
		return abi.Argument{}, fmt.Errorf("unexpected tokens in argument %d: %q", position, part)
	}
	return arg, nil
}
