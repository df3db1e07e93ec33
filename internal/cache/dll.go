package cache

import "time"

// DLLNode is the single entity of the doubly linked list.
type DLLNode struct {
	LeftNode  *DLLNode
	RightNode *DLLNode

	key      string
	value    []byte
	expireAt time.Time
}

// Key returns the key of the node.
func (n *DLLNode) Key() string {
	return n.key
}

// expired reports whether the node is past its expiry at t.
// A zero expiry never expires.
func (n *DLLNode) expired(t time.Time) bool {
	return !n.expireAt.IsZero() && !t.Before(n.expireAt)
}

// DoublyLinkedList keeps the nodes in usage order.
//
// All nodes have a left and a right link except the head and the tail node.
type DoublyLinkedList struct {
	Head *DLLNode
	Tail *DLLNode
}

// NewDoublyLinkedList returns a new instance of an empty DoublyLinkedList.
func NewDoublyLinkedList() *DoublyLinkedList {
	return &DoublyLinkedList{}
}

// InsertHead inserts the node at the head of the list.
func (dll *DoublyLinkedList) InsertHead(node *DLLNode) {
	node.LeftNode = nil
	node.RightNode = dll.Head
	if dll.Head != nil {
		dll.Head.LeftNode = node
	}
	dll.Head = node
	if dll.Tail == nil {
		dll.Tail = node
	}
}

// DeleteNode unlinks the provided node from the list.
func (dll *DoublyLinkedList) DeleteNode(node *DLLNode) {
	if node.LeftNode != nil {
		node.LeftNode.RightNode = node.RightNode
	} else {
		dll.Head = node.RightNode
	}
	if node.RightNode != nil {
		node.RightNode.LeftNode = node.LeftNode
	} else {
		dll.Tail = node.LeftNode
	}
	node.LeftNode = nil
	node.RightNode = nil
}

// MoveToHead moves an already linked node to the head of the list.
func (dll *DoublyLinkedList) MoveToHead(node *DLLNode) {
	if dll.Head == node {
		return
	}
	dll.DeleteNode(node)
	dll.InsertHead(node)
}

// Keys returns the keys of the list from head to tail.
func (dll *DoublyLinkedList) Keys() []string {
	var keys []string
	for n := dll.Head; n != nil; n = n.RightNode {
		keys = append(keys, n.key)
	}
	return keys
}
