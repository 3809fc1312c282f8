package model

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression は学習済みモデルの保存形式
type Compression byte

const (
	// CompressionNone は非圧縮のgob
	CompressionNone Compression = iota
	// CompressionZstd はzstd圧縮のgob
	CompressionZstd
	// CompressionLZ4 はlz4フレーム圧縮のgob
	CompressionLZ4
)

// String は圧縮形式の名前を返す
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", byte(c))
	}
}

// SaveModel はモデルをファイルに保存する
//
// 使用例:
//
//	fitted, _ := transformer.NewGMMTransformer().Fit(df)
//	err := model.SaveModel(fitted, "gmm.gob")
func SaveModel(model interface{}, filename string) error {
	return SaveModelCompressed(model, filename, CompressionNone)
}

// SaveModelCompressed はモデルを指定の圧縮形式でファイルに保存する
func SaveModelCompressed(model interface{}, filename string, c Compression) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := SaveModelToWriter(model, bw, c); err != nil {
		return err
	}
	return bw.Flush()
}

// LoadModel はファイルからモデルを読み込む。圧縮形式はヘッダから判別する
//
// 使用例:
//
//	var fitted transformer.MixtureModel
//	err := model.LoadModel(&fitted, "gmm.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return LoadModelFromReader(model, bufio.NewReader(file))
}

// SaveModelToWriter はモデルをio.Writerに保存する
// 先頭1バイトに圧縮形式を書き込み、続けてgobストリームを書く。
func SaveModelToWriter(model interface{}, w io.Writer, c Compression) error {
	if _, err := w.Write([]byte{byte(c)}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	switch c {
	case CompressionNone:
		return encodeGob(model, w)
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		if err := encodeGob(model, enc); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		if err := encodeGob(model, zw); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	default:
		return fmt.Errorf("unsupported compression: %v", c)
	}
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	var header [1]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	switch c := Compression(header[0]); c {
	case CompressionNone:
		return decodeGob(model, r)
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer dec.Close()
		return decodeGob(model, dec)
	case CompressionLZ4:
		return decodeGob(model, lz4.NewReader(r))
	default:
		return fmt.Errorf("unsupported compression: %v", c)
	}
}

func encodeGob(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

func decodeGob(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	return nil
}
