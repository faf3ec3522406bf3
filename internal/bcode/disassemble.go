package bcode

import (
	"fmt"
	"strings"

	"github.com/informatter/v7go/internal/varint"
)

// Disassemble renders bc's opcode stream as one line per instruction
// (offset, mnemonic, decoded operand), skipping over line-number records
// the same way the VM's decode loop does. Used by cmd/v7's `emit`
// subcommand and by tests asserting on compiler output shape.
func Disassemble(bc *Bcode) string {
	var sb strings.Builder
	ops := bc.Ops
	ip := 0
	line := 0
	for ip < len(ops) {
		if ops[ip]&lineNoFlag != 0 {
			v, n := varint.Get(ops[ip+1:])
			line = int(v >> 1)
			ip += 1 + n
			continue
		}
		op := Opcode(ops[ip])
		def, err := Get(op)
		if err != nil {
			fmt.Fprintf(&sb, "%04d  <bad opcode %d>\n", ip, ops[ip])
			ip++
			continue
		}
		start := ip
		ip++
		var operands []string
		for _, width := range def.OperandWidths {
			switch width {
			case 0:
				v, n := varint.Get(ops[ip:])
				operands = append(operands, fmt.Sprintf("%d", v))
				ip += n
			case 1:
				operands = append(operands, fmt.Sprintf("%d", ops[ip]))
				ip++
			case 4:
				v := uint32(ops[ip])<<24 | uint32(ops[ip+1])<<16 | uint32(ops[ip+2])<<8 | uint32(ops[ip+3])
				operands = append(operands, fmt.Sprintf("%d", v))
				ip += 4
			}
		}
		if len(operands) > 0 {
			fmt.Fprintf(&sb, "%04d  line %-4d %-18s %s\n", start, line, def.Name, strings.Join(operands, ", "))
		} else {
			fmt.Fprintf(&sb, "%04d  line %-4d %s\n", start, line, def.Name)
		}
	}
	return sb.String()
}
