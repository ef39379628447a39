package codegen

// Register classes and naming for the System-V AMD64 target. Grounded on
// the teacher's backend/arm register-file idea (a small fixed pool of
// physical registers, addressed by index, with SP/FP singled out) adapted
// from aarch64's x0-x30/v0-v31 to x86-64's general-purpose + xmm files.
// Unlike the teacher's regfile.RegisterFile (a full LRU allocator
// interface), this backend keeps variables and temporaries stack-resident
// and uses registers only as a cache — matching spec.md §9's description of
// "a small map from register name to the operand currently resident there"
// rather than a graph-coloring allocator, since the IR already expresses
// every intermediate value as a named temp.

// intArgRegs are the System-V integer/pointer argument registers, in order.
var intArgRegs = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// fltArgRegs are the System-V SSE argument registers, in order.
var fltArgRegs = []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7"}

// intScratch lists the caller-saved general-purpose registers. Nothing in
// this package reads it: instruction lowering names its registers (rax,
// rcx, rdx, r8 and the argument registers) directly, and regCache records
// whichever of those holds a value. rbx, rsp and rbp are not listed.
var intScratch = []string{"rax", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "r11"}

// fltScratch lists the SSE registers; like intScratch, it is not read by
// the lowering, which names xmm0/xmm1 and the argument registers directly.
var fltScratch = []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7"}

// regCache maps a physical register name to the name of the stack-resident
// value (var or temp, see operandKey) currently cached there. Call sites
// invalidate entries on Label (control-flow merge point: a cached register
// may hold a stale value depending on which path was taken), Call
// (caller-saved registers are clobbered by the callee) and explicit
// removals after destructive instructions, mirroring spec.md §9 exactly.
type regCache struct {
	held map[string]string // register name -> operand key
}

func newRegCache() *regCache {
	return &regCache{held: map[string]string{}}
}

// invalidateAll drops every cache entry, e.g. across a Label or Call.
func (c *regCache) invalidateAll() {
	c.held = map[string]string{}
}

// invalidate drops the cache entry for a single register, e.g. after Div
// clobbers rdx.
func (c *regCache) invalidate(reg string) {
	delete(c.held, reg)
}

// bind records that reg now holds key's value.
func (c *regCache) bind(reg, key string) {
	for r, k := range c.held {
		if k == key && r != reg {
			delete(c.held, r)
		}
	}
	c.held[reg] = key
}
