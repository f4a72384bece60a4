package common

import "github.com/pkg/errors"

// 数据加载
var (
	ErrOpenCsv       = errors.New("open csv failed")
	ErrReadCsv       = errors.New("read csv failed")
	ErrLabelColumn   = errors.New("label column not found")
	ErrParseValue    = errors.New("feature value is not numeric")
	ErrDerivedColumn = errors.New("derived column expression failed")
)

// ErrEmptyDataset aborts the whole run: nothing to search without rows or dimensions.
var ErrEmptyDataset = errors.New("dataset has no rows or no feature dimensions")

// ErrNoExpandableChild means selection stopped on a node without any unexpanded child.
// Fatal for the current label only.
var ErrNoExpandableChild = errors.New("no expandable child")

// 非致命, 作为结果的停止原因返回
var (
	ErrEmptyCandidatePool    = errors.New("empty candidate pool")
	ErrNoDissimilarCandidate = errors.New("no dissimilar covering candidate left")
)

var (
	ErrJobRunning    = errors.New("a job is running")
	ErrInvalidParams = errors.New("invalid mining params")
)
