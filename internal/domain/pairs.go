package domain

// PairKey is an unordered pair of two distinct prescribed drugs,
// identified by their positions in the input prescription (I < J).
// Enumeration order is part of the contract: pair lists are generated
// i<j over input order so contributor and evidence ordering is
// reproducible across runs.
type PairKey struct {
	I     int    `json:"-"`
	J     int    `json:"-"`
	DrugA string `json:"drug_a"`
	DrugB string `json:"drug_b"`
}

// Contains reports whether the pair includes the given drug identifier.
func (k PairKey) Contains(drugID string) bool {
	return k.DrugA == drugID || k.DrugB == drugID
}

// EnumeratePairs builds the pairwise key set for a prescription: exactly
// N*(N-1)/2 entries in i<j input order.
func EnumeratePairs(prescription []PrescriptionItem) []PairKey {
	n := len(prescription)
	if n < 2 {
		return nil
	}
	pairs := make([]PairKey, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, PairKey{
				I:     i,
				J:     j,
				DrugA: prescription[i].DrugID,
				DrugB: prescription[j].DrugID,
			})
		}
	}
	return pairs
}

// ValidatePrescription rejects empty prescriptions and items without a
// drug identifier before any collaborator call is made.
func ValidatePrescription(prescription []PrescriptionItem) error {
	if len(prescription) == 0 {
		return ErrEmptyPrescription
	}
	for i := range prescription {
		if err := prescription[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
