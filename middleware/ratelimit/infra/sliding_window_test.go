package infra

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"genai-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func newWindow(t *testing.T, window time.Duration, max int, opts ...SlidingWindowOption) (*SlidingWindowStore, *ManualClock) {
	t.Helper()
	clk := NewManualClock(epoch)
	s, err := NewSlidingWindowStore(window, max, append([]SlidingWindowOption{WithClock(clk)}, opts...)...)
	require.NoError(t, err)
	return s, clk
}

func TestNewSlidingWindowStore_Validation(t *testing.T) {
	_, err := NewSlidingWindowStore(0, 5)
	assert.Error(t, err)
	_, err = NewSlidingWindowStore(time.Second, 0)
	assert.Error(t, err)
}

func TestSlidingWindow_SixRequestsInTwoSeconds(t *testing.T) {
	s, clk := newWindow(t, 10*time.Second, 5)

	var admitted []bool
	for i := 0; i < 6; i++ {
		ok, _ := s.Admit("1.2.3.4")
		admitted = append(admitted, ok)
		clk.Advance(400 * time.Millisecond)
	}

	assert.Equal(t, []bool{true, true, true, true, true, false}, admitted)
}

func TestSlidingWindow_AdmitsExactlyMaxWhenClockFrozen(t *testing.T) {
	for _, max := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("max=%d", max), func(t *testing.T) {
			s, _ := newWindow(t, time.Minute, max)
			admitted := 0
			for i := 0; i < max*3; i++ {
				if ok, _ := s.Admit("client"); ok {
					admitted++
				}
			}
			assert.Equal(t, max, admitted)
		})
	}
}

func TestSlidingWindow_OldestLeavesWindow(t *testing.T) {
	s, clk := newWindow(t, 10*time.Second, 2)

	ok, _ := s.Admit("c")
	require.True(t, ok)
	clk.Advance(3 * time.Second)
	ok, _ = s.Admit("c")
	require.True(t, ok)

	ok, retry := s.Admit("c")
	require.False(t, ok)
	// mais antigo foi em t=0, agora t=3s: faltam 7s
	assert.Equal(t, 7*time.Second, retry)

	// exatamente window depois do primeiro: now - t == window => fora da janela
	clk.Advance(7 * time.Second)
	ok, _ = s.Admit("c")
	assert.True(t, ok)

	ok, _ = s.Admit("c")
	assert.False(t, ok, "second stamp (t=3s) and the new one still count")
}

func TestSlidingWindow_RejectedRequestsAreFree(t *testing.T) {
	s, clk := newWindow(t, 10*time.Second, 1)

	ok, _ := s.Admit("c")
	require.True(t, ok)

	// várias rejeições no meio da janela não empurram a liberação
	for i := 0; i < 5; i++ {
		clk.Advance(time.Second)
		ok, _ = s.Admit("c")
		require.False(t, ok)
	}

	clk.Advance(5 * time.Second) // t = 10s
	ok, _ = s.Admit("c")
	assert.True(t, ok)
}

func TestSlidingWindow_RejectionPersistsFilteredSequence(t *testing.T) {
	s, clk := newWindow(t, 10*time.Second, 2)

	s.Admit("c")
	clk.Advance(9 * time.Second)
	s.Admit("c")
	ok, _ := s.Admit("c")
	require.False(t, ok)

	clk.Advance(2 * time.Second) // primeiro vence, segundo ainda vale
	ok, _ = s.Admit("c")
	require.True(t, ok)

	s.mu.Lock()
	stamps := append([]int64(nil), s.windows["c"].stamps...)
	s.mu.Unlock()
	assert.Len(t, stamps, 2)
	for _, ts := range stamps {
		assert.Less(t, clk.Now().UnixMilli()-ts, int64(10_000))
	}
}

func TestSlidingWindow_ClientsAreIndependent(t *testing.T) {
	s, _ := newWindow(t, time.Minute, 1)

	ok, _ := s.Admit("a")
	assert.True(t, ok)
	ok, _ = s.Admit("b")
	assert.True(t, ok)
	ok, _ = s.Admit("a")
	assert.False(t, ok)
}

func TestSlidingWindow_ResetEvictionClearsWholeTable(t *testing.T) {
	s, _ := newWindow(t, time.Minute, 1, WithMaxClients(3))

	for _, k := range []string{"a", "b", "c"} {
		ok, _ := s.Admit(k)
		require.True(t, ok)
	}
	require.Equal(t, 3, s.Len())

	// quarto cliente dispara o reset: "a" volta a ter cota (limitação conhecida)
	ok, _ := s.Admit("d")
	require.True(t, ok)
	assert.Equal(t, 1, s.Len())

	ok, _ = s.Admit("a")
	assert.True(t, ok)
}

func TestSlidingWindow_LRUEvictionKeepsRecentClients(t *testing.T) {
	s, _ := newWindow(t, time.Minute, 1, WithMaxClients(2), WithEviction(EvictionLRU))

	s.Admit("a")
	s.Admit("b")
	s.Admit("a") // "a" fica mais recente (rejeitado, mas visto)

	ok, _ := s.Admit("c") // expulsa "b"
	require.True(t, ok)
	assert.Equal(t, 2, s.Len())

	ok, _ = s.Admit("a")
	assert.False(t, ok, "a must still be limited")
	ok, _ = s.Admit("b")
	assert.True(t, ok, "b was evicted and starts fresh")
}

func TestSlidingWindow_LimiterAdapter(t *testing.T) {
	s, _ := newWindow(t, time.Minute, 1)

	lim := s.Get(domain.Key("k"))
	hinted, ok := lim.(domain.HintedLimiter)
	require.True(t, ok)

	assert.True(t, lim.Allow())
	allowed, retry := hinted.AllowHint()
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retry)
}

func TestSlidingWindow_ConcurrentAdmitsNeverExceedQuota(t *testing.T) {
	s, _ := newWindow(t, time.Minute, 50)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Admit("shared"); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, admitted)
}

func TestParseEviction(t *testing.T) {
	e, err := ParseEviction("")
	require.NoError(t, err)
	assert.Equal(t, EvictionReset, e)

	e, err = ParseEviction("lru")
	require.NoError(t, err)
	assert.Equal(t, "lru", e.String())

	_, err = ParseEviction("random")
	assert.Error(t, err)
}

func BenchmarkSlidingWindow_ManyClients(b *testing.B) {
	s, err := NewSlidingWindowStore(time.Minute, 100)
	if err != nil {
		b.Fatal(err)
	}
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("10.0.%d.%d", i/256, i%256)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Admit(keys[rand.Intn(len(keys))])
	}
}
