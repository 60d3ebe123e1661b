package plan

// Canonical operator vocabulary. Vendor plans name the same operators in
// their own way; CanonicalOperator maps them here. The vocabulary is
// open-ended: an operator string outside this table is preserved verbatim
// with Recognized set to false.
const (
	OpSeqScan         = "SeqScan"
	OpIndexScan       = "IndexScan"
	OpIndexOnlyScan   = "IndexOnlyScan"
	OpBitmapHeapScan  = "BitmapHeapScan"
	OpBitmapIndexScan = "BitmapIndexScan"
	OpTidScan         = "TidScan"
	OpSubqueryScan    = "SubqueryScan"
	OpFunctionScan    = "FunctionScan"
	OpValuesScan      = "ValuesScan"
	OpCTEScan         = "CTEScan"
	OpForeignScan     = "ForeignScan"
	OpWorkTableScan   = "WorkTableScan"

	OpNestedLoop = "NestedLoop"
	OpHashJoin   = "HashJoin"
	OpMergeJoin  = "MergeJoin"

	OpSort            = "Sort"
	OpIncrementalSort = "IncrementalSort"

	OpAggregate      = "Aggregate"
	OpGroupAggregate = "GroupAggregate"
	OpHashAggregate  = "HashAggregate"
	OpWindowAgg      = "WindowAgg"
	OpGroup          = "Group"

	OpAppend         = "Append"
	OpMergeAppend    = "MergeAppend"
	OpSetOp          = "SetOp"
	OpRecursiveUnion = "RecursiveUnion"
	OpBitmapAnd      = "BitmapAnd"
	OpBitmapOr       = "BitmapOr"

	OpLimit       = "Limit"
	OpMaterialize = "Materialize"
	OpMemoize     = "Memoize"
	OpUnique      = "Unique"
	OpResult      = "Result"
	OpGather      = "Gather"
	OpGatherMerge = "GatherMerge"
	OpHash        = "Hash"
	OpLockRows    = "LockRows"
	OpProjectSet  = "ProjectSet"
)

// Family groups operators for the aligner's substitution cost: replacing a
// scan with another scan is cheaper than replacing a scan with an aggregate.
type Family int

const (
	FamilyOther Family = iota
	FamilyScan
	FamilyJoin
	FamilySort
	FamilyAggregate
	FamilySetOp
)

func (f Family) String() string {
	switch f {
	case FamilyScan:
		return "scan"
	case FamilyJoin:
		return "join"
	case FamilySort:
		return "sort"
	case FamilyAggregate:
		return "aggregate"
	case FamilySetOp:
		return "setop"
	default:
		return "other"
	}
}

type operatorClass struct {
	family Family
	// commutative marks operators whose children order does not affect
	// semantics, so the normalizer may reorder them.
	commutative bool
}

// operatorTable is the fixed classification table. It is a tested contract:
// the normalizer's reordering and the aligner's cost model both read it, and
// changing an entry changes comparison results.
var operatorTable = map[string]operatorClass{
	OpSeqScan:         {family: FamilyScan},
	OpIndexScan:       {family: FamilyScan},
	OpIndexOnlyScan:   {family: FamilyScan},
	OpBitmapHeapScan:  {family: FamilyScan},
	OpBitmapIndexScan: {family: FamilyScan},
	OpTidScan:         {family: FamilyScan},
	OpSubqueryScan:    {family: FamilyScan},
	OpFunctionScan:    {family: FamilyScan},
	OpValuesScan:      {family: FamilyScan},
	OpCTEScan:         {family: FamilyScan},
	OpForeignScan:     {family: FamilyScan},
	OpWorkTableScan:   {family: FamilyScan},

	// outer/inner (or build/probe) positions carry meaning, so joins keep
	// their children order.
	OpNestedLoop: {family: FamilyJoin},
	OpHashJoin:   {family: FamilyJoin},
	OpMergeJoin:  {family: FamilyJoin},

	OpSort:            {family: FamilySort},
	OpIncrementalSort: {family: FamilySort},

	OpAggregate:      {family: FamilyAggregate},
	OpGroupAggregate: {family: FamilyAggregate},
	OpHashAggregate:  {family: FamilyAggregate},
	OpWindowAgg:      {family: FamilyAggregate},
	OpGroup:          {family: FamilyAggregate},

	OpAppend:    {family: FamilySetOp, commutative: true},
	OpBitmapAnd: {family: FamilySetOp, commutative: true},
	OpBitmapOr:  {family: FamilySetOp, commutative: true},
	OpSetOp:     {family: FamilySetOp, commutative: true},
	// MergeAppend is a sort-preserving merge and RecursiveUnion puts the
	// non-recursive term first.
	OpMergeAppend:    {family: FamilySetOp},
	OpRecursiveUnion: {family: FamilySetOp},

	OpLimit:       {family: FamilyOther},
	OpMaterialize: {family: FamilyOther},
	OpMemoize:     {family: FamilyOther},
	OpUnique:      {family: FamilyOther},
	OpResult:      {family: FamilyOther},
	OpGather:      {family: FamilyOther},
	OpGatherMerge: {family: FamilyOther},
	OpHash:        {family: FamilyOther},
	OpLockRows:    {family: FamilyOther},
	OpProjectSet:  {family: FamilyOther},
}

// operatorAliases maps vendor operator names onto the canonical vocabulary.
// Currently it covers PostgreSQL EXPLAIN node types; extend it to support
// other EXPLAIN dialects.
var operatorAliases = map[string]string{
	"Seq Scan":          OpSeqScan,
	"Index Scan":        OpIndexScan,
	"Index Only Scan":   OpIndexOnlyScan,
	"Bitmap Heap Scan":  OpBitmapHeapScan,
	"Bitmap Index Scan": OpBitmapIndexScan,
	"Tid Scan":          OpTidScan,
	"Subquery Scan":     OpSubqueryScan,
	"Function Scan":     OpFunctionScan,
	"Values Scan":       OpValuesScan,
	"CTE Scan":          OpCTEScan,
	"Foreign Scan":      OpForeignScan,
	"WorkTable Scan":    OpWorkTableScan,
	"Nested Loop":       OpNestedLoop,
	"Hash Join":         OpHashJoin,
	"Merge Join":        OpMergeJoin,
	"Incremental Sort":  OpIncrementalSort,
	"Merge Append":      OpMergeAppend,
	"Recursive Union":   OpRecursiveUnion,
	"Gather Merge":      OpGatherMerge,
	"ProjectSet":        OpProjectSet,
}

// CanonicalOperator maps a vendor operator name onto the canonical
// vocabulary. The second return value is false when the name is unknown, in
// which case the input is returned verbatim.
func CanonicalOperator(vendor string) (string, bool) {
	if canonical, ok := operatorAliases[vendor]; ok {
		return canonical, true
	}
	if _, ok := operatorTable[vendor]; ok {
		return vendor, true
	}
	return vendor, false
}

// OperatorFamily returns the family of a canonical operator. Unknown
// operators belong to FamilyOther.
func OperatorFamily(op string) Family {
	return operatorTable[op].family
}

// Commutative reports whether the children order of the operator is
// irrelevant to its semantics.
func Commutative(op string) bool {
	return operatorTable[op].commutative
}
