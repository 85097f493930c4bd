package model

import "encoding/json"

// MovieResult TMDB 返回的单条电影
// 只解析流水线用到的字段，其余字段原样透传
type MovieResult struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path"`

	raw json.RawMessage
}

type plainMovieResult MovieResult

func (m *MovieResult) UnmarshalJSON(data []byte) error {
	var p plainMovieResult
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MovieResult(p)
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (m MovieResult) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(plainMovieResult(m))
}

// MovieList search / discover 接口的响应
type MovieList struct {
	Page         int           `json:"page"`
	Results      []MovieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}
