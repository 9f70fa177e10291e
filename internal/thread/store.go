package thread

import "context"

// Store is the persistence capability the core writes threads through. It
// is single-writer, guarded by a mutex in every real implementation, and
// used only by the UI collaborator to read history back; the core only
// calls Create/Append. Concrete implementations (on-disk JSON, a database)
// live outside this package.
type Store interface {
	Create(ctx context.Context, t *Thread) error
	Append(ctx context.Context, threadID ThreadID, m Message) error
	Get(ctx context.Context, threadID ThreadID) (*Thread, error)
	List(ctx context.Context) ([]*Thread, error)
}
