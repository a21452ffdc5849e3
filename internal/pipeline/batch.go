package pipeline

import (
	"context"
	"log"
)

// BatchResult 单个批次的显式结果。
// 失败的批次带着错误留在结果列表里，由各阶段的聚合函数决定如何折叠，
// 局部失败在类型上可见而不是藏在异常控制流里。
type BatchResult[P any] struct {
	Index   int
	Payload P
	Err     error
}

// OK 批次是否成功
func (r BatchResult[P]) OK() bool {
	return r.Err == nil
}

// RunBatched 把 items 按 batchSize 切成连续批次逐个调用 call。
// 任一批次失败只记录错误不中断后续批次；
// 取消只在批次之间检查，正在进行的调用不会被打断。
func RunBatched[I, P any](ctx context.Context, items []I, size int, call func(ctx context.Context, batch []I) (P, error)) []BatchResult[P] {
	if size <= 0 {
		size = batchSize
	}

	var results []BatchResult[P]

	for start := 0; start < len(items); start += size {
		index := start / size

		if err := ctx.Err(); err != nil {
			results = append(results, BatchResult[P]{Index: index, Err: err})
			break
		}

		end := start + size
		if end > len(items) {
			end = len(items)
		}

		payload, err := call(ctx, items[start:end])
		if err != nil {
			log.Printf("Batch %d failed, continuing with remaining batches: %v", index, err)
		}
		results = append(results, BatchResult[P]{Index: index, Payload: payload, Err: err})
	}

	return results
}

// successCount 统计成功批次数
func successCount[P any](results []BatchResult[P]) int {
	n := 0
	for _, r := range results {
		if r.OK() {
			n++
		}
	}
	return n
}

// lastSuccessful 最后一个批次成功时返回它的载荷。
// 只有最后一批的概要字段可信，中间批次的概要只覆盖局部数据。
func lastSuccessful[P any](results []BatchResult[P]) (P, bool) {
	var zero P
	if len(results) == 0 {
		return zero, false
	}
	last := results[len(results)-1]
	if !last.OK() {
		return zero, false
	}
	return last.Payload, true
}
