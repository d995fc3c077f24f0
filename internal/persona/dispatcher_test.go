package persona

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vision-helper/internal/classifier"
)

type recordingObserver struct {
	mu       sync.Mutex
	switches [][2]string
}

func (r *recordingObserver) ObservePersonaSwitch(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.switches = append(r.switches, [2]string{from, to})
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC) }
}

func TestNewDispatcherStartsWithCompanion(t *testing.T) {
	d := NewDispatcher(nil)
	assert.Equal(t, Companion, d.Current().ID)
	assert.Equal(t, "小安", d.Current().Name)
	assert.Empty(t, d.History())
}

func TestSelectForCategoryFraudIsIdempotent(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(nil, WithClock(fixedClock()), WithObserver(obs))

	assert.True(t, d.SelectForCategory(classifier.CategoryFraud))
	assert.False(t, d.SelectForCategory(classifier.CategoryFraud))

	history := d.History()
	require.Len(t, history, 1)
	assert.Equal(t, Companion, history[0].From)
	assert.Equal(t, Security, history[0].To)
	assert.Equal(t, "檢測到詐騙相關內容", history[0].Reason)
	assert.Equal(t, "2025-01-08T10:00:00Z", history[0].Timestamp)
	assert.Equal(t, [][2]string{{"companion", "security"}}, obs.switches)
}

func TestSelectForCategoryMapping(t *testing.T) {
	tests := []struct {
		category classifier.Category
		want     ID
	}{
		{classifier.CategoryMedical, Medical},
		{classifier.CategoryFraud, Security},
		{classifier.CategoryBill, Companion},
		{classifier.CategoryGeneral, Companion},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, ForCategory(tt.category))
			d := NewDispatcher(nil)
			d.SelectForCategory(tt.category)
			assert.Equal(t, tt.want, d.Current().ID)
		})
	}
}

func TestSelectGeneralWhileCompanionRecordsNothing(t *testing.T) {
	d := NewDispatcher(nil)
	assert.False(t, d.SelectForCategory(classifier.CategoryGeneral))
	assert.Empty(t, d.History())
}

func TestSwitchRoleUnknownPersona(t *testing.T) {
	d := NewDispatcher(nil)
	assert.False(t, d.SwitchRole(ID("pirate"), "test"))
	assert.Equal(t, Companion, d.Current().ID)
	assert.Empty(t, d.History())
}

func TestSwitchRoleToSamePersonaIsRecorded(t *testing.T) {
	d := NewDispatcher(nil)
	assert.True(t, d.SwitchRole(Companion, "manual"))
	require.Len(t, d.History(), 1)
	assert.Equal(t, Companion, d.History()[0].From)
	assert.Equal(t, Companion, d.History()[0].To)
}

func TestResetToDefault(t *testing.T) {
	d := NewDispatcher(nil)
	d.SwitchRole(Medical, "test")
	assert.True(t, d.ResetToDefault())
	assert.Equal(t, Companion, d.Current().ID)
	history := d.History()
	require.Len(t, history, 2)
	assert.Equal(t, "重置到預設角色", history[1].Reason)
}

func TestPromptFor(t *testing.T) {
	d := NewDispatcher(nil)
	assert.Contains(t, d.PromptFor(), "小安")
	assert.Contains(t, d.PromptFor(Security), "防詐警察")
	assert.Contains(t, d.PromptFor(Medical), "三不一廣泛")
	assert.Empty(t, d.PromptFor(ID("unknown")))
}

func TestHistoryIsACopy(t *testing.T) {
	d := NewDispatcher(nil)
	d.SwitchRole(Medical, "a")
	h := d.History()
	h[0].Reason = "mutated"
	assert.Equal(t, "a", d.History()[0].Reason)
}

func TestConcurrentSwitchesAreAllAudited(t *testing.T) {
	d := NewDispatcher(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				d.SwitchRole(Medical, "even")
			} else {
				d.SwitchRole(Security, "odd")
			}
		}(i)
	}
	wg.Wait()

	history := d.History()
	require.Len(t, history, 50)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].To, history[i].From, "audit chain broken at %d", i)
	}
	assert.Equal(t, history[len(history)-1].To, d.Current().ID)
}
