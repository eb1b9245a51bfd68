package updates

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/burrow/pkg/types"
)

var (
	bucketStreams = []byte("streams")

	keyReceived     = []byte("received")
	keyAcknowledged = []byte("acknowledged")
)

// Journal is the durable record of status updates, one stream per
// (framework, task). Writes are synced before Record and Acknowledge
// return, so an acknowledgement handed to an executor is always backed by
// disk.
type Journal struct {
	db *bolt.DB
}

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketStreams)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func streamKey(frameworkID types.FrameworkID, taskID types.TaskID) []byte {
	// IDs are opaque; NUL keeps the pair unambiguous.
	return append(append([]byte(frameworkID), 0), []byte(taskID)...)
}

func splitStreamKey(key []byte) (types.FrameworkID, types.TaskID) {
	i := bytes.IndexByte(key, 0)
	if i < 0 {
		return types.FrameworkID(key), ""
	}
	return types.FrameworkID(key[:i]), types.TaskID(key[i+1:])
}

func seqKey(seq int64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(seq))
	return key[:]
}

// Record appends an update to its stream's received log, assigning the next
// sequence number. The returned copy carries that sequence.
func (j *Journal) Record(update types.StatusUpdate) (types.StatusUpdate, error) {
	err := j.db.Update(func(tx *bolt.Tx) error {
		stream, err := tx.Bucket(bucketStreams).
			CreateBucketIfNotExists(streamKey(update.FrameworkID, update.Status.TaskID))
		if err != nil {
			return err
		}
		received, err := stream.CreateBucketIfNotExists(keyReceived)
		if err != nil {
			return err
		}
		if _, err := stream.CreateBucketIfNotExists(keyAcknowledged); err != nil {
			return err
		}

		seq, err := received.NextSequence()
		if err != nil {
			return err
		}
		update.Sequence = int64(seq)

		data, err := json.Marshal(update)
		if err != nil {
			return err
		}
		return received.Put(seqKey(update.Sequence), data)
	})
	if err != nil {
		return update, fmt.Errorf("failed to record status update: %w", err)
	}
	return update, nil
}

// Acknowledge moves the oldest pending update of the stream to the
// acknowledged log. When nothing is left pending and the acknowledged state
// is terminal, the stream is retired. Acknowledging a stream with nothing
// pending is a no-op.
func (j *Journal) Acknowledge(frameworkID types.FrameworkID, taskID types.TaskID) error {
	err := j.db.Update(func(tx *bolt.Tx) error {
		streams := tx.Bucket(bucketStreams)
		key := streamKey(frameworkID, taskID)
		stream := streams.Bucket(key)
		if stream == nil {
			return nil
		}
		received := stream.Bucket(keyReceived)
		acked := stream.Bucket(keyAcknowledged)
		if received == nil || acked == nil {
			return nil
		}

		k, v := received.Cursor().First()
		if k == nil {
			return nil
		}

		var update types.StatusUpdate
		if err := json.Unmarshal(v, &update); err != nil {
			return err
		}

		if err := acked.Put(append([]byte{}, k...), append([]byte{}, v...)); err != nil {
			return err
		}
		if err := received.Delete(k); err != nil {
			return err
		}

		if next, _ := received.Cursor().First(); next == nil && update.Status.State.Terminal() {
			return streams.DeleteBucket(key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to acknowledge status update: %w", err)
	}
	return nil
}

// Replay returns every pending (received but unacknowledged) update across
// all streams, ordered by stream and sequence, for re-delivery after a
// restart.
func (j *Journal) Replay() ([]types.StatusUpdate, error) {
	var pending []types.StatusUpdate
	err := j.db.View(func(tx *bolt.Tx) error {
		streams := tx.Bucket(bucketStreams)
		return streams.ForEachBucket(func(key []byte) error {
			received := streams.Bucket(key).Bucket(keyReceived)
			if received == nil {
				return nil
			}
			return received.ForEach(func(_, v []byte) error {
				var update types.StatusUpdate
				if err := json.Unmarshal(v, &update); err != nil {
					return err
				}
				pending = append(pending, update)
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay journal: %w", err)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].FrameworkID != pending[j].FrameworkID {
			return pending[i].FrameworkID < pending[j].FrameworkID
		}
		if pending[i].Status.TaskID != pending[j].Status.TaskID {
			return pending[i].Status.TaskID < pending[j].Status.TaskID
		}
		return pending[i].Sequence < pending[j].Sequence
	})
	return pending, nil
}

// Streams lists the (framework, task) pairs with live journal streams.
func (j *Journal) Streams() ([][2]string, error) {
	var out [][2]string
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStreams).ForEachBucket(func(key []byte) error {
			fw, task := splitStreamKey(key)
			out = append(out, [2]string{string(fw), string(task)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
