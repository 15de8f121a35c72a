package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

const (
	TotalCount  = 100000
	Concurrency = 200

	BaseURL   = "http://localhost:8080"
	AccountID = 1
	// 帳戶擁有者，存款會過 DepositOwnerPolicy 檢查
	Username = "alice"
)

// 對同一帳戶同幣別連續存款，驗證並發收斂與量測 TPS
// 結束後餘額應恰好是 TotalCount * 10.5
func main() {
	client := &http.Client{Timeout: 10 * time.Second}
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(Username+":password"))
	body := []byte(`{"amount": 10.5, "currency": "USD"}`)
	url := fmt.Sprintf("%s/accounts/%d/deposit", BaseURL, AccountID)

	var wg sync.WaitGroup
	wg.Add(TotalCount)

	sem := make(chan struct{}, Concurrency)

	startTime := time.Now()

	for i := 0; i < TotalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				log.Printf("build request %d failed: %v", idx, err)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", auth)

			resp, err := client.Do(req)
			if err != nil {
				if idx%10000 == 0 {
					log.Printf("deposit %d failed: %v", idx, err)
				}
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK && idx%10000 == 0 {
				log.Printf("deposit %d got status %d", idx, resp.StatusCode)
			}
		}(i)
	}

	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v\n", TotalCount, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(TotalCount)/elapsed.Seconds())
}
