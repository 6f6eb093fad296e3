package application

const maxPageLimit = 100

// paginate slices items to the requested page. Out of range pages are empty.
func paginate[T any](items []T, page Page, defaultLimit int) ([]T, PageInfo) {
	number := page.Number
	if number < 1 {
		number = 1
	}
	limit := page.Limit
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	total := len(items)
	info := PageInfo{
		CurrentPage: number,
		TotalPages:  (total + limit - 1) / limit,
		TotalItems:  total,
	}

	start := (number - 1) * limit
	if start >= total {
		return []T{}, info
	}
	end := start + limit
	if end > total {
		end = total
	}
	return items[start:end], info
}
