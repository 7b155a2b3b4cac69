package sir

import (
	"fmt"
	"io"
	"strings"
)

// DumpModule writes a human-readable representation of a SIR module.
func DumpModule(w io.Writer, m *Module) error {
	if w == nil || m == nil {
		return nil
	}
	fmt.Fprintf(w, "module %s funcs=%d\n", m.Name, len(m.Funcs))
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := Dump(w, f); err != nil {
			return err
		}
	}
	return nil
}

// Dump writes a human-readable representation of one function.
func Dump(w io.Writer, f *Func) error {
	if w == nil || f == nil {
		return nil
	}
	p := &printer{w: w, f: f}
	p.printf("\n%s fn %s:\n", f.Stage, f.Name)
	if len(f.Vars) > 0 {
		p.printf("  vars:\n")
		for _, v := range f.Vars {
			name := v.Name
			if name == "" {
				name = "_"
			}
			p.printf("    $%d %s %s size=%d off=%d bits=%d\n", v.ID, v.Mode, name, v.Size, v.Offset, v.ElemBits)
		}
	}
	if f.SharedSize > 0 {
		p.printf("  shared=%d\n", f.SharedSize)
	}
	if ws := f.WorkgroupSize; ws != [3]uint16{} {
		p.printf("  workgroup=%dx%dx%d\n", ws[0], ws[1], ws[2])
	}
	p.list(f.Body, 1)
	return p.err
}

type printer struct {
	w   io.Writer
	f   *Func
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) list(list []Node, depth int) {
	ind := strings.Repeat("  ", depth)
	for i := range list {
		n := &list[i]
		switch n.Kind {
		case NodeBlock:
			if n.Block == nil {
				continue
			}
			p.printf("%sbb%d:\n", ind, n.Block.Index)
			for j := range n.Block.Instrs {
				p.printf("%s  %s\n", ind, p.instr(&n.Block.Instrs[j]))
			}
		case NodeIf:
			if n.If == nil {
				continue
			}
			p.printf("%sif %s {\n", ind, p.src(n.If.Cond))
			p.list(n.If.Then, depth+1)
			p.printf("%s} else {\n", ind)
			p.list(n.If.Else, depth+1)
			p.printf("%s}\n", ind)
		case NodeLoop:
			if n.Loop == nil {
				continue
			}
			p.printf("%sloop {\n", ind)
			p.list(n.Loop.Body, depth+1)
			p.printf("%s}\n", ind)
		}
	}
}

func (p *printer) def(v ValueID) string {
	d, ok := p.f.Def(v)
	if !ok {
		return fmt.Sprintf("%%%d:?", v)
	}
	div := ""
	if d.Divergent {
		div = " div"
	}
	return fmt.Sprintf("%%%d:%dx%d%s", v, d.BitSize, d.Components, div)
}

func (p *printer) src(s Src) string {
	if len(s.Swizzle) == 0 {
		return fmt.Sprintf("%%%d", s.Value)
	}
	const names = "xyzwv"
	var sb strings.Builder
	for _, c := range s.Swizzle {
		if int(c) < len(names) {
			sb.WriteByte(names[c])
		} else {
			sb.WriteByte('?')
		}
	}
	return fmt.Sprintf("%%%d.%s", s.Value, sb.String())
}

func (p *printer) srcs(list []Src) string {
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = p.src(s)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) instr(ins *Instr) string {
	switch ins.Kind {
	case InstrALU:
		exact := ""
		if ins.ALU.Exact {
			exact = " exact"
		}
		return fmt.Sprintf("%s = %s%s %s", p.def(ins.ALU.Dest), ins.ALU.Op, exact, p.srcs(ins.ALU.Srcs))
	case InstrConst:
		parts := make([]string, len(ins.Const.Bits))
		for i, b := range ins.Const.Bits {
			parts[i] = fmt.Sprintf("0x%x", b)
		}
		return fmt.Sprintf("%s = const (%s)", p.def(ins.Const.Dest), strings.Join(parts, ", "))
	case InstrUndef:
		return fmt.Sprintf("%s = undef", p.def(ins.Undef.Dest))
	case InstrIntrinsic:
		in := &ins.Intrinsic
		lhs := ""
		if in.Dest != NoValueID {
			lhs = p.def(in.Dest) + " = "
		}
		return fmt.Sprintf("%s@%s(%s)%s", lhs, in.Op, p.srcs(in.Srcs), intrinsicAttrs(in))
	case InstrTex:
		t := &ins.Tex
		parts := make([]string, len(t.Srcs))
		for i, s := range t.Srcs {
			parts[i] = fmt.Sprintf("%s=%s", s.Kind, p.src(s.Src))
		}
		flags := ""
		if t.IsArray {
			flags += " array"
		}
		if t.IsShadow {
			flags += " shadow"
		}
		if t.TextureNonUniform {
			flags += " nonuniform"
		}
		return fmt.Sprintf("%s = %s.%s(%s) tex=%d:%d smp=%d:%d%s", p.def(t.Dest), t.Op, t.Dim,
			strings.Join(parts, ", "), t.TextureSet, t.TextureBinding, t.SamplerSet, t.SamplerBinding, flags)
	case InstrPhi:
		parts := make([]string, len(ins.Phi.Srcs))
		for i, s := range ins.Phi.Srcs {
			parts[i] = fmt.Sprintf("bb%d: %%%d", s.Pred, s.Value)
		}
		return fmt.Sprintf("%s = phi %s", p.def(ins.Phi.Dest), strings.Join(parts, ", "))
	case InstrJump:
		return ins.Jump.Kind.String()
	case InstrDeref:
		d := &ins.Deref
		switch d.Kind {
		case DerefVar:
			return fmt.Sprintf("%s = deref_var $%d", p.def(d.Dest), d.Var)
		case DerefArray:
			return fmt.Sprintf("%s = deref_array %%%d[%s] stride=%d", p.def(d.Dest), d.Parent, p.src(d.Index), d.Stride)
		case DerefStruct:
			return fmt.Sprintf("%s = deref_struct %%%d +%d", p.def(d.Dest), d.Parent, d.Offset)
		case DerefCast:
			return fmt.Sprintf("%s = deref_cast %s", p.def(d.Dest), p.src(d.Index))
		}
	}
	return fmt.Sprintf("<%s>", ins.Kind)
}

func intrinsicAttrs(in *IntrinsicInstr) string {
	var sb strings.Builder
	if in.Set != 0 || in.Binding != 0 {
		fmt.Fprintf(&sb, " binding=%d:%d", in.Set, in.Binding)
	}
	if in.Base != 0 {
		fmt.Fprintf(&sb, " base=%d", in.Base)
	}
	if in.Align != 0 {
		fmt.Fprintf(&sb, " align=%d", in.Align)
	}
	if in.WriteMask != 0 {
		fmt.Fprintf(&sb, " wrmask=0x%x", in.WriteMask)
	}
	switch in.Op {
	case IntrSSBOAtomic, IntrSSBOAtomicSwap, IntrSharedAtomic, IntrSharedAtomicSwap,
		IntrGlobalAtomic, IntrGlobalAtomicSwap, IntrDerefAtomic, IntrDerefAtomicSwap,
		IntrImageAtomic, IntrImageAtomicSwap:
		fmt.Fprintf(&sb, " atomic=%s", in.Atomic)
	}
	if in.Access != 0 {
		fmt.Fprintf(&sb, " access=%s", in.Access)
	}
	return sb.String()
}

// String returns the set qualifiers separated by '|'.
func (a Access) String() string {
	names := [...]string{"coherent", "volatile", "restrict", "non_writable", "non_readable", "non_uniform", "stream", "can_reorder"}
	var parts []string
	for i, n := range names {
		if a&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
