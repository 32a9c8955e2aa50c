package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChanges_Track(t *testing.T) {
	changes := make(Changes)
	changes.Track("name", "Robótica", "Robótica")
	changes.Track("isActive", true, false)
	changes.Track("tags", []string{"a"}, []string{"a"})

	assert.Equal(t, []string{"isActive"}, changes.Fields())
	assert.Equal(t, Change{Old: true, New: false}, changes["isActive"])
	assert.False(t, changes.IsEmpty())
	assert.True(t, make(Changes).IsEmpty())
}

func TestChanges_ValueScan(t *testing.T) {
	changes := Changes{"name": {Old: "a", New: "b"}}
	val, err := changes.Value()
	assert.NoError(t, err)

	var scanned Changes
	assert.NoError(t, scanned.Scan(val))
	assert.Equal(t, Change{Old: "a", New: "b"}, scanned["name"])

	assert.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
	assert.Error(t, scanned.Scan(42))
}

func TestBuildTrail(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	actor := Actor{UserID: 1, UserRole: "Coordinador", UserName: "Ana Quispe"}

	create := Created(EntityCategory, actor)
	create.ID, create.EntityID, create.CreatedAt = 1, 7, t0
	upd1 := Updated(EntityCategory, 7, actor, Changes{"name": {Old: "IA", New: "Inteligencia Artificial"}})
	upd1.ID, upd1.CreatedAt = 2, t0.Add(time.Hour)
	upd2 := Updated(EntityCategory, 7, actor, Changes{"isActive": {Old: true, New: false}})
	upd2.ID, upd2.CreatedAt = 3, t0.Add(2*time.Hour)

	trail := BuildTrail([]Entry{upd2, create, upd1})
	if assert.NotNil(t, trail.Create) {
		assert.Equal(t, t0, trail.Create.Timestamp)
		assert.Equal(t, "Ana Quispe", trail.Create.UserName)
	}
	if assert.Len(t, trail.Updates, 2) {
		assert.Contains(t, trail.Updates[0].Changes, "name")
		assert.Contains(t, trail.Updates[1].Changes, "isActive")
	}

	empty := BuildTrail(nil)
	assert.Nil(t, empty.Create)
	assert.NotNil(t, empty.Updates)
}
