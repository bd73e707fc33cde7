package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// readFormFile マルチパートフォームからファイルを読み込みます
func readFormFile(c *gin.Context, field string) (string, []byte, error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	return header.Filename, data, nil
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
