package replay

// Client updates priorities and reads the state of a replay table
type Client interface {
	MutatePriorities(keys []uint64, priorities []float64) error
	ServerInfo() (Info, error)
}

// Table is a replay table that can be written to, sampled from and
// have its priorities updated. NewTable returns a Table on a Server in
// the same process, and the gRPC client of package rpc is a Table on
// a remote Server.
type Table interface {
	Inserter
	Sampler
	Client
}

// localTable implements Table on a Server in the same process
type localTable struct {
	*Server
}

// NewTable returns a Table on a Server in the same process
func NewTable(server *Server) Table {
	return localTable{server}
}

// ServerInfo implements the Client interface
func (t localTable) ServerInfo() (Info, error) {
	return t.Info(), nil
}
