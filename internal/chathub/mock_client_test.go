package chathub_test

import "sync/atomic"

type MockClient struct {
	userID string
	roomID string
	closed atomic.Int32
}

func newMockClient(userID, roomID string) *MockClient {
	return &MockClient{userID: userID, roomID: roomID}
}

func (c *MockClient) GetUserID() string {
	return c.userID
}

func (c *MockClient) GetRoomID() string {
	return c.roomID
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Add(1)
}

func (c *MockClient) CloseCount() int {
	return int(c.closed.Load())
}
