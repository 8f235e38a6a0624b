package systems

import (
	"cmp"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
)

// BubbleSpec is the fixed configuration of a new bubble.
type BubbleSpec struct {
	Category    components.Category
	Radius      float64
	ChildWeight float64
	Position    r2.Vec
}

// BubbleOptions configures a BubbleSystem.
type BubbleOptions struct {
	OverlapInterval int                     // Individual overlap query period in ticks (min 1)
	MergeMask       components.CategoryMask // Categories eligible as merge candidates (0 = all)
	Index           SpatialIndex            // Broad phase (nil = 1024x1024 grid)
}

// BubbleView is a read-only copy of one bubble's state.
type BubbleView struct {
	Entity             ecs.Entity
	ID                 uint32
	Category           components.Category
	State              components.State
	Parent             ecs.Entity
	Children           []ecs.Entity
	Hardened           bool
	IndividualRadius   float64
	ChildWeightRatio   float64
	IndividualPosition r2.Vec
	RealRadius         float64
	RealPosition       r2.Vec
}

type pairKey struct {
	lo, hi uint32
}

func makePairKey(a, b uint32) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// BubbleSystem owns bubble entities and runs the absorption state machine.
// Hierarchy components are written only by this system.
type BubbleSystem struct {
	world *ecs.World
	bus   *Bus
	index SpatialIndex

	mask            components.CategoryMask
	overlapInterval uint8

	mapper *ecs.Map7[
		components.Bubble,
		components.Position,
		components.Motion,
		components.Real,
		components.Hierarchy,
		components.Harden,
		components.Throttle,
	]
	filter *ecs.Filter2[components.Bubble, components.Real]

	bubbleMap   *ecs.Map1[components.Bubble]
	posMap      *ecs.Map1[components.Position]
	realMap     *ecs.Map1[components.Real]
	hierMap     *ecs.Map1[components.Hierarchy]
	hardenMap   *ecs.Map1[components.Harden]
	throttleMap *ecs.Map1[components.Throttle]

	nextID        uint32
	tick          int32
	orphansHealed int

	// Per-tick scratch
	entries    []SpatialEntry
	order      []ecs.Entity
	candidates []ecs.Entity
	evaluated  map[pairKey]struct{}
}

// NewBubbleSystem creates a bubble system on w emitting to bus.
func NewBubbleSystem(w *ecs.World, bus *Bus, opts BubbleOptions) *BubbleSystem {
	interval := opts.OverlapInterval
	if interval < 1 {
		interval = 1
	} else if interval > 255 {
		interval = 255
	}
	mask := opts.MergeMask
	if mask == 0 {
		mask = components.MaskAll
	}
	index := opts.Index
	if index == nil {
		index = NewSpatialGrid(1024, 1024, 64)
	}

	return &BubbleSystem{
		world:           w,
		bus:             bus,
		index:           index,
		mask:            mask,
		overlapInterval: uint8(interval),
		mapper: ecs.NewMap7[
			components.Bubble,
			components.Position,
			components.Motion,
			components.Real,
			components.Hierarchy,
			components.Harden,
			components.Throttle,
		](w),
		filter:      ecs.NewFilter2[components.Bubble, components.Real](w),
		bubbleMap:   ecs.NewMap1[components.Bubble](w),
		posMap:      ecs.NewMap1[components.Position](w),
		realMap:     ecs.NewMap1[components.Real](w),
		hierMap:     ecs.NewMap1[components.Hierarchy](w),
		hardenMap:   ecs.NewMap1[components.Harden](w),
		throttleMap: ecs.NewMap1[components.Throttle](w),
		evaluated:   make(map[pairKey]struct{}),
	}
}

// Spawn creates an Individual bubble. Values are not validated; callers check them.
func (s *BubbleSystem) Spawn(spec BubbleSpec) ecs.Entity {
	s.nextID++
	b := components.Bubble{
		ID:               s.nextID,
		Category:         spec.Category,
		IndividualRadius: spec.Radius,
		ChildWeightRatio: spec.ChildWeight,
	}
	pos := components.Position{X: spec.Position.X, Y: spec.Position.Y}
	fp := components.Real{Radius: spec.Radius, Position: spec.Position}
	hier := components.Hierarchy{State: components.StateIndividual}

	return s.mapper.NewEntity(&b, &pos, &components.Motion{}, &fp, &hier, &components.Harden{}, &components.Throttle{})
}

// Destroy detaches e from its hierarchy and removes it.
// A child leaves its parent normally; a parent releases every child.
func (s *BubbleSystem) Destroy(e ecs.Entity) bool {
	if !s.Alive(e) {
		return false
	}

	hier := s.hierMap.Get(e)
	switch hier.State {
	case components.StateChild:
		if s.validParent(e, hier) {
			s.Separate(e)
		} else {
			s.healOrphan(e, hier)
		}
	case components.StateParent:
		for _, child := range hier.Children {
			ch := s.hierMap.Get(child)
			ch.State = components.StateIndividual
			ch.Parent = ecs.Entity{}
			s.refreshIndividual(child)
			s.emit(EventLeftParent, child, e)
			s.emit(EventBecameIndividual, child, ecs.Entity{})
		}
		hier.Children = nil
		hier.State = components.StateIndividual
	}

	s.emit(EventDestroyed, e, ecs.Entity{})
	s.world.RemoveEntity(e)
	return true
}

// Alive reports whether e is a live bubble of this system.
func (s *BubbleSystem) Alive(e ecs.Entity) bool {
	return !e.IsZero() && s.world.Alive(e)
}

// Entities returns all live bubbles in ascending ID order.
func (s *BubbleSystem) Entities() []ecs.Entity {
	s.collect()
	return slices.Clone(s.order)
}

// View returns a copy of e's state. ok is false if e is not alive.
func (s *BubbleSystem) View(e ecs.Entity) (BubbleView, bool) {
	if !s.Alive(e) {
		return BubbleView{}, false
	}
	b, pos, _, fp, hier, harden, _ := s.mapper.Get(e)
	return BubbleView{
		Entity:             e,
		ID:                 b.ID,
		Category:           b.Category,
		State:              hier.State,
		Parent:             hier.Parent,
		Children:           slices.Clone(hier.Children),
		Hardened:           harden.Active,
		IndividualRadius:   b.IndividualRadius,
		ChildWeightRatio:   b.ChildWeightRatio,
		IndividualPosition: pos.Vec(),
		RealRadius:         fp.Radius,
		RealPosition:       fp.Position,
	}, true
}

// The accessors below return zero values for dead or zero handles.

// State returns e's hierarchy role.
func (s *BubbleSystem) State(e ecs.Entity) components.State {
	if !s.Alive(e) {
		return components.StateIndividual
	}
	return s.hierMap.Get(e).State
}

// Parent returns e's parent, or the zero entity.
func (s *BubbleSystem) Parent(e ecs.Entity) ecs.Entity {
	if !s.Alive(e) {
		return ecs.Entity{}
	}
	return s.hierMap.Get(e).Parent
}

// Children returns a copy of e's children.
func (s *BubbleSystem) Children(e ecs.Entity) []ecs.Entity {
	if !s.Alive(e) {
		return nil
	}
	return slices.Clone(s.hierMap.Get(e).Children)
}

// RealRadius returns e's derived radius.
func (s *BubbleSystem) RealRadius(e ecs.Entity) float64 {
	if !s.Alive(e) {
		return 0
	}
	return s.realMap.Get(e).Radius
}

// RealPosition returns e's derived position.
func (s *BubbleSystem) RealPosition(e ecs.Entity) r2.Vec {
	if !s.Alive(e) {
		return r2.Vec{}
	}
	return s.realMap.Get(e).Position
}

// ID returns e's stable identity.
func (s *BubbleSystem) ID(e ecs.Entity) uint32 {
	if !s.Alive(e) {
		return 0
	}
	return s.bubbleMap.Get(e).ID
}

// Bubble returns e's configuration.
func (s *BubbleSystem) Bubble(e ecs.Entity) components.Bubble {
	if !s.Alive(e) {
		return components.Bubble{}
	}
	return *s.bubbleMap.Get(e)
}

// SetIndividualPosition feeds e's own tracked position.
func (s *BubbleSystem) SetIndividualPosition(e ecs.Entity, p r2.Vec) {
	if !s.Alive(e) {
		return
	}
	s.posMap.Get(e).Set(p)
}

// OrphansHealed returns how many children were forced Individual for lack of a parent.
func (s *BubbleSystem) OrphansHealed() int {
	return s.orphansHealed
}

// Tick returns the tick of the last Update.
func (s *BubbleSystem) Tick() int32 {
	return s.tick
}

// collect fills order and entries with all bubbles sorted by ID.
func (s *BubbleSystem) collect() {
	s.entries = s.entries[:0]
	query := s.filter.Query()
	for query.Next() {
		b, fp := query.Get()
		s.entries = append(s.entries, SpatialEntry{
			E:        query.Entity(),
			ID:       b.ID,
			Category: b.Category,
			Position: fp.Position,
			Radius:   fp.Radius,
		})
	}
	slices.SortFunc(s.entries, func(a, b SpatialEntry) int {
		return cmp.Compare(a.ID, b.ID)
	})

	s.order = s.order[:0]
	for _, entry := range s.entries {
		s.order = append(s.order, entry.E)
	}
}

// refresh recomputes real stats for e's current state.
func (s *BubbleSystem) refresh(e ecs.Entity) {
	switch s.hierMap.Get(e).State {
	case components.StateIndividual:
		s.refreshIndividual(e)
	case components.StateChild:
		s.refreshChild(e)
	case components.StateParent:
		s.refreshParent(e)
	}
}

func (s *BubbleSystem) refreshIndividual(e ecs.Entity) {
	s.setReal(e, s.bubbleMap.Get(e).IndividualRadius, s.posMap.Get(e).Vec())
}

func (s *BubbleSystem) refreshChild(e ecs.Entity) {
	s.setReal(e, 0, s.posMap.Get(e).Vec())
}

func (s *BubbleSystem) refreshParent(e ecs.Entity) {
	b := s.bubbleMap.Get(e)
	hier := s.hierMap.Get(e)

	base := Contributor{Radius: b.IndividualRadius, Weight: 1, Position: s.posMap.Get(e).Vec()}
	children := make([]Contributor, 0, len(hier.Children))
	for _, c := range hier.Children {
		children = append(children, contributorOf(s.bubbleMap.Get(c), s.posMap.Get(c)))
	}

	radius, pos := Aggregate(base, children)
	s.setReal(e, radius, pos)
}

// setReal writes derived stats, emitting change events only on change.
func (s *BubbleSystem) setReal(e ecs.Entity, radius float64, pos r2.Vec) {
	fp := s.realMap.Get(e)
	if fp.Radius != radius {
		fp.Radius = radius
		s.bus.Emit(Event{
			Type:      EventRadiusChanged,
			Tick:      s.tick,
			Subject:   e,
			SubjectID: s.bubbleMap.Get(e).ID,
			Radius:    radius,
		})
	}
	if fp.Position != pos {
		fp.Position = pos
		s.bus.Emit(Event{
			Type:      EventPositionChanged,
			Tick:      s.tick,
			Subject:   e,
			SubjectID: s.bubbleMap.Get(e).ID,
			Position:  pos,
		})
	}
}

// emit queues a discrete event from subject about other (may be zero).
func (s *BubbleSystem) emit(t EventType, subject, other ecs.Entity) {
	ev := Event{
		Type:      t,
		Tick:      s.tick,
		Subject:   subject,
		SubjectID: s.bubbleMap.Get(subject).ID,
		Other:     other,
	}
	if !other.IsZero() && s.world.Alive(other) {
		ev.OtherID = s.bubbleMap.Get(other).ID
	}
	s.bus.Emit(ev)
}
