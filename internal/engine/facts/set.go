package facts

// Set is the fact state of one unit, or of a whole run once merged.
type Set struct {
	Functions        []FunctionFact        `json:"functions"`
	Imports          []ImportFact          `json:"imports"`
	Exports          []ExportFact          `json:"exports"`
	MacroDefs        []MacroDefFact        `json:"macro_defs"`
	MacroInvocations []MacroInvocationFact `json:"macro_invocations"`
	Paths            []PathOccurrenceFact  `json:"paths"`
	Calls            []CallOccurrenceFact  `json:"calls"`

	// NoStd is true when any merged unit declared itself free of std.
	NoStd bool `json:"no_std"`
}

// Merge appends other's facts after s's, preserving both orders.
func (s *Set) Merge(other Set) {
	s.Functions = append(s.Functions, other.Functions...)
	s.Imports = append(s.Imports, other.Imports...)
	s.Exports = append(s.Exports, other.Exports...)
	s.MacroDefs = append(s.MacroDefs, other.MacroDefs...)
	s.MacroInvocations = append(s.MacroInvocations, other.MacroInvocations...)
	s.Paths = append(s.Paths, other.Paths...)
	s.Calls = append(s.Calls, other.Calls...)
	s.NoStd = s.NoStd || other.NoStd
}

// Counts summarizes the size of each collection.
type Counts struct {
	Functions        int `json:"functions"`
	Imports          int `json:"imports"`
	Exports          int `json:"exports"`
	MacroDefs        int `json:"macro_defs"`
	MacroInvocations int `json:"macro_invocations"`
	Paths            int `json:"paths"`
	Calls            int `json:"calls"`
}

func (s *Set) Counts() Counts {
	return Counts{
		Functions:        len(s.Functions),
		Imports:          len(s.Imports),
		Exports:          len(s.Exports),
		MacroDefs:        len(s.MacroDefs),
		MacroInvocations: len(s.MacroInvocations),
		Paths:            len(s.Paths),
		Calls:            len(s.Calls),
	}
}
