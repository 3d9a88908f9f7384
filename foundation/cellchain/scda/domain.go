package scda

import (
	"fmt"

	"github.com/cellchain/cellchain/foundation/cellchain/hyper"
)

// Domain represents one of the fixed knowledge domains an account can
// accumulate knowledge in.
type Domain string

// The set of knowledge domains. Their order is fixed and each domain maps to
// one axis of the 8D space, so the list must never be reordered.
const (
	DomainMathematics Domain = "mathematics"
	DomainPhysics     Domain = "physics"
	DomainChemistry   Domain = "chemistry"
	DomainBiology     Domain = "biology"
	DomainComputation Domain = "computation"
	DomainLogic       Domain = "logic"
	DomainEconomics   Domain = "economics"
	DomainLinguistics Domain = "linguistics"
)

// Domains lists every knowledge domain in axis order.
var Domains = [hyper.Dims]Domain{
	DomainMathematics,
	DomainPhysics,
	DomainChemistry,
	DomainBiology,
	DomainComputation,
	DomainLogic,
	DomainEconomics,
	DomainLinguistics,
}

// domainAxes is the reverse of the Domains table.
var domainAxes = func() map[Domain]int {
	m := make(map[Domain]int, len(Domains))
	for i, domain := range Domains {
		m[domain] = i
	}
	return m
}()

// ToDomain validates the specified name is a known knowledge domain.
func ToDomain(name string) (Domain, error) {
	domain := Domain(name)
	if _, exists := domainAxes[domain]; !exists {
		return "", fmt.Errorf("unknown knowledge domain %q", name)
	}

	return domain, nil
}

// Axis returns the index of the 8D axis assigned to the domain.
func (d Domain) Axis() int {
	return domainAxes[d]
}

// UnitVector returns the standard basis vector for the domain's axis.
func (d Domain) UnitVector() hyper.Vector {
	var v hyper.Vector
	v[domainAxes[d]] = 1
	return v
}

// =============================================================================

// Knowledge maintains the per-domain knowledge levels of an account. Every
// level is in [0,1] and only moves up.
type Knowledge map[Domain]float64

// NewKnowledge constructs a zeroed knowledge mapping covering every domain.
func NewKnowledge() Knowledge {
	k := make(Knowledge, len(Domains))
	for _, domain := range Domains {
		k[domain] = 0
	}
	return k
}

// Copy makes a deep copy of the knowledge mapping.
func (k Knowledge) Copy() Knowledge {
	c := make(Knowledge, len(k))
	for domain, level := range k {
		c[domain] = level
	}
	return c
}
