package db

// ComponentRow represents a row in the components table
type ComponentRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StateRow represents a row in the states table
type StateRow struct {
	ComponentID int    `json:"component_id"`
	Index       int    `json:"idx"`
	Name        string `json:"name"`
}

// SNodeRow represents a row in the snodes table
type SNodeRow struct {
	ID            int     `json:"id"`
	HeadComponent int     `json:"head_component"`
	HeadState     int     `json:"head_state"`
	Prob          float64 `json:"prob"`
	Weight        float64 `json:"weight"`
	Synthetic     bool    `json:"synthetic"`
	LowConfidence bool    `json:"low_confidence"`
}

// TailRow represents a row in the snode_tails table
type TailRow struct {
	SNodeID   int `json:"snode_id"`
	Pos       int `json:"pos"`
	Component int `json:"component"`
	State     int `json:"state"`
}

// SourceRow represents a row in the snode_sources table
type SourceRow struct {
	SNodeID int     `json:"snode_id"`
	Pos     int     `json:"pos"`
	Source  string  `json:"source"`
	Weight  float64 `json:"weight"`
	Prob    float64 `json:"prob"`
}

// PatientRow represents a row in the patients table
type PatientRow struct {
	Hash       string `json:"hash"`
	Genes      string `json:"genes"`      // JSON array
	Drugs      string `json:"drugs"`      // JSON array
	Properties string `json:"properties"` // JSON object
}
