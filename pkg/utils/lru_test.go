package utils

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type cacheEntry struct {
	path string
	size int64
}

func (entry cacheEntry) Path() string {
	return entry.path
}

func (entry cacheEntry) Size() int64 {
	return entry.size
}

type evictFuncMock struct {
	mock.Mock
}

func (m *evictFuncMock) Evict(entry cacheEntry) bool {
	args := m.Called(entry)
	return args.Bool(0)
}

type LRUTestSuite struct {
	suite.Suite
	lru  *LRU[cacheEntry]
	mock *evictFuncMock
}

func (suite *LRUTestSuite) SetupTest() {
	suite.mock = new(evictFuncMock)
	suite.lru = NewLRU(2, suite.mock.Evict)
}

func (suite *LRUTestSuite) TestEvict() {
	entry1 := cacheEntry{path: "entry1", size: 1}
	entry2 := cacheEntry{path: "entry2", size: 1}
	entry3 := cacheEntry{path: "entry3", size: 1}

	suite.lru.Add(entry1)
	suite.lru.Add(entry2)

	suite.mock.On("Evict", entry1).Return(true).Once()

	suite.lru.Add(entry3)

	suite.mock.AssertExpectations(suite.T())
	suite.Equal(int64(2), suite.lru.Size())
}

func (suite *LRUTestSuite) TestLRUProperty() {
	entry1 := cacheEntry{path: "entry1", size: 1}
	entry2 := cacheEntry{path: "entry2", size: 1}
	entry3 := cacheEntry{path: "entry3", size: 1}

	suite.lru.Add(entry1)
	suite.lru.Add(entry2)

	// Access entry1 to make it recently used.
	_, ok := suite.lru.Get("entry1")
	suite.True(ok, "Expected to find entry1 in cache")

	suite.mock.On("Evict", entry2).Return(true).Once()

	// Adding entry3 should evict entry2 because entry1 was recently used.
	suite.lru.Add(entry3)

	suite.mock.AssertExpectations(suite.T())

	_, ok = suite.lru.Get("entry2")
	suite.False(ok, "Expected entry2 to be evicted from cache")

	_, ok = suite.lru.Get("entry3")
	suite.True(ok, "Expected to find entry3 in cache")
}

func (suite *LRUTestSuite) TestConditionalEvict() {
	entry1 := cacheEntry{path: "entry1", size: 1}
	entry2 := cacheEntry{path: "entry2", size: 1}
	entry3 := cacheEntry{path: "entry3", size: 1}
	entry4 := cacheEntry{path: "entry4", size: 1}
	entry5 := cacheEntry{path: "entry5", size: 1}

	suite.mock.On("Evict", entry1).Return(false)
	suite.mock.On("Evict", entry2).Return(false)
	suite.mock.On("Evict", entry3).Return(false)
	suite.mock.On("Evict", entry4).Return(true)
	suite.mock.On("Evict", entry5).Return(false)

	suite.lru.Add(entry1)
	suite.lru.Add(entry2)
	suite.lru.Add(entry3)
	suite.lru.Add(entry4)
	suite.lru.Add(entry5)

	// Entries that decline eviction stay even over budget.
	_, ok := suite.lru.Get("entry1")
	suite.True(ok, "Expected entry1 to stay in cache")
	_, ok = suite.lru.Get("entry2")
	suite.True(ok, "Expected entry2 to stay in cache")
	_, ok = suite.lru.Get("entry3")
	suite.True(ok, "Expected entry3 to stay in cache")
	_, ok = suite.lru.Get("entry4")
	suite.False(ok, "Expected entry4 to be evicted from cache")
	_, ok = suite.lru.Get("entry5")
	suite.True(ok, "Expected entry5 to stay in cache")
}

func (suite *LRUTestSuite) TestRemoveSkipsEvictCallback() {
	entry1 := cacheEntry{path: "entry1", size: 1}

	suite.lru.Add(entry1)
	suite.lru.Remove("entry1")

	suite.Equal(0, suite.lru.Count())
	suite.Equal(int64(0), suite.lru.Size())
	suite.mock.AssertNotCalled(suite.T(), "Evict", entry1)
}

func TestLRUTestSuite(t *testing.T) {
	suite.Run(t, new(LRUTestSuite))
}
