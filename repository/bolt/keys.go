package bolt

import (
	"bytes"
	"encoding/json"

	bbolt "go.etcd.io/bbolt"
)

// Bucket names. Keys join their parts with a zero byte so that prefixes never collide.
const (
	BucketTasks       = "tasks"
	BucketCompletions = "completions"
	BucketShared      = "group_subtask_states"
	BucketHistory     = "history_entries"
)

// Buckets lists every bucket the repositories need.
var Buckets = []string{BucketTasks, BucketCompletions, BucketShared, BucketHistory}

const sep = "\x00"

func completionKey(userID, taskID, subtaskID string) []byte {
	return []byte(userID + sep + taskID + sep + subtaskID)
}

func completionPrefix(userID, taskID string) []byte {
	return []byte(userID + sep + taskID + sep)
}

func sharedKey(taskID, subtaskID string) []byte {
	return []byte(taskID + sep + subtaskID)
}

func sharedPrefix(taskID string) []byte {
	return []byte(taskID + sep)
}

func historyKey(userID, taskID string) []byte {
	return []byte(userID + sep + taskID)
}

func historyPrefix(userID string) []byte {
	return []byte(userID + sep)
}

func put(b *bbolt.Bucket, key []byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, payload)
}

// scanPrefix decodes every value under prefix into a fresh T.
func scanPrefix[T any](b *bbolt.Bucket, prefix []byte) ([]T, error) {
	var out []T
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
