package utils

// FindByIDs 按ID顺序查找数据
// 返回：找到的数据（保持ids中的顺序）与不存在的ID
func FindByIDs[T any](dataMap map[int32]T, ids []int32) (okData []T, failedIDs []int32) {
	okData = make([]T, 0, len(ids))
	for _, id := range ids {
		if d, ok := dataMap[id]; ok {
			okData = append(okData, d)
		} else {
			failedIDs = append(failedIDs, id)
		}
	}
	return
}
