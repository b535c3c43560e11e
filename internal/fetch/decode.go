package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// decodeReader 根据Content-Encoding包装响应体
// 支持 gzip, deflate, br (Brotli), 未知编码原样返回
func decodeReader(contentEncoding string, body io.Reader) (io.Reader, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		return reader, nil
	case "deflate":
		return flate.NewReader(body), nil
	case "br":
		return brotli.NewReader(body), nil
	case "", "identity":
		return body, nil
	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

// decompressBody 解压已读取的响应体
// gzip只在检测到魔数时解压(colly可能已经解压过)
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))
	if encoding == "gzip" && !bytes.HasPrefix(body, []byte{0x1f, 0x8b}) {
		return body, nil
	}

	reader, err := decodeReader(encoding, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%s读取失败: %w", encoding, err)
	}
	return decompressed, nil
}

// toUTF8 将未声明字符集的HTML按<meta charset>或内容嗅探转换为UTF-8
// Content-Type中声明了字符集的响应由colly负责转换
func toUTF8(body []byte, contentType string) []byte {
	if strings.Contains(strings.ToLower(contentType), "charset") || utf8.Valid(body) {
		return body
	}

	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body
	}

	converted, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		utils.Debugf("字符集转换失败 (%s): %v", name, err)
		return body
	}
	return converted
}
