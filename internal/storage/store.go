package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rfrecon/wardrive-df/internal/df"
)

// Store provides an interface for managing direction finding data storage
// operations. It handles sessions, raw measurements and estimation results
// in a thread-safe manner. All operations that write to the database
// should be considered atomic.
type Store interface {
	// CreateSession initializes a new collection session and returns its
	// unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sensorType: Type of capture sensor (e.g., "wifi-monitor", "sdr-array")
	//   - sensorID: Unique identifier of the sensor (e.g., interface name)
	//   - config: Optional engine configuration. Can be string, []byte, or
	//     JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, sensorType, sensorID string, config any) (sessionID int64, err error)

	// Session retrieves a specific collection session by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//
	// Returns:
	//   - session: Pointer to session data, nil if not found
	//   - error: If retrieval fails or context is cancelled
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all collection sessions stored in the database.
	// Results are ordered by start time in ascending order.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//
	// Returns:
	//   - sessions: Slice of pointers to session data
	//   - error: If retrieval fails or context is cancelled
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreMeasurements saves a batch of raw measurements for a session.
	// All measurements are stored in a single atomic transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session the measurements belong to
	//   - measurements: Raw sensor observations to persist
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreMeasurements(ctx context.Context, sessionID int64, measurements []df.Measurement) error

	// StoreResult saves one estimation result for a session.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session the result belongs to
	//   - result: Estimation result to persist
	//
	// Returns:
	//   - resultID: Unique identifier for the stored result record
	//   - error: If storage fails or context is cancelled
	StoreResult(ctx context.Context, sessionID int64, result *df.Result) (resultID int64, err error)

	// Results returns every stored estimation result for a session,
	// ordered by creation time.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session to read results from
	//
	// Returns:
	//   - results: Slice of reconstructed results
	//   - error: If retrieval fails or context is cancelled
	Results(ctx context.Context, sessionID int64) (results []*df.Result, err error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	//
	// Returns:
	//   - error: If closing fails or some resources cannot be released
	Close() error
}
