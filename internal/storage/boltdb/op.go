package boltdb

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

type upsertKeyOp struct {
	tx     *bolt.Tx
	bucket string
	key    string
	obj    interface{}
}

func (op upsertKeyOp) do() error {
	b, err := op.tx.CreateBucketIfNotExists([]byte(op.bucket))
	if err != nil {
		return err
	}
	p, err := json.Marshal(op.obj)
	if err != nil {
		return err
	}
	return b.Put([]byte(op.key), p)
}

type putStringOp struct {
	tx     *bolt.Tx
	bucket string
	key    string
	val    string
}

func (op putStringOp) do() error {
	b, err := op.tx.CreateBucketIfNotExists([]byte(op.bucket))
	if err != nil {
		return err
	}
	return b.Put([]byte(op.key), []byte(op.val))
}

type delKeyOp struct {
	tx     *bolt.Tx
	bucket string
	key    string
}

func (op delKeyOp) do() error {
	b := op.tx.Bucket([]byte(op.bucket))
	if b == nil {
		return nil
	}
	return b.Delete([]byte(op.key))
}

// fetchKeyOp decodes the value of key into obj. It reports false when the
// key doesn't exist.
type fetchKeyOp struct {
	tx     *bolt.Tx
	bucket string
	key    string
	obj    interface{}
}

func (op fetchKeyOp) do() (bool, error) {
	b := op.tx.Bucket([]byte(op.bucket))
	if b == nil {
		return false, nil
	}
	data := b.Get([]byte(op.key))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, op.obj); err != nil {
		return false, err
	}
	return true, nil
}

type fetchStringOp struct {
	tx     *bolt.Tx
	bucket string
	key    string
}

func (op fetchStringOp) do() (string, bool) {
	b := op.tx.Bucket([]byte(op.bucket))
	if b == nil {
		return "", false
	}
	data := b.Get([]byte(op.key))
	if data == nil {
		return "", false
	}
	return string(data), true
}
