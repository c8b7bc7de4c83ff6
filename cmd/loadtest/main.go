package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-account-ledger/internal/app/ledger/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-account-ledger/pkg/grpc"
)

// 對單一帳戶同時送出大量 USE，驗證同帳戶的請求會被序列化:
// 成功筆數 * amount 不會超過初始餘額，其餘皆為 AMOUNT_EXCEED_BALANCE
func main() {
	addr := flag.String("addr", "localhost:50051", "grpc server address")
	userID := flag.Int64("user", 1, "user id")
	accountNumber := flag.String("account", "2000000000", "account number")
	amount := flag.Int64("amount", 100, "amount per USE request")
	total := flag.Int("n", 10000, "total requests")
	concurrency := flag.Int("c", 100, "concurrent requests")
	cancelEvery := flag.Int("cancel-every", 0, "cancel every Nth successful USE (0 disables)")
	timeout := flag.Duration("timeout", 120*time.Second, "overall timeout")
	flag.Parse()

	pool := grpcpool.NewPool(grpcpool.WithInterceptor(requestIDInterceptor))
	defer pool.Close()

	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	c := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		codes      = make(map[string]int)
		successes  int
		cancelled  int
		sem        = make(chan struct{}, *concurrency)
		recordCode = func(code string) {
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}
	)

	startTime := time.Now()
	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := c.UseBalance(ctx, &grpc_adapter.UseBalanceRequest{
				UserID:        *userID,
				AccountNumber: *accountNumber,
				Amount:        *amount,
			})
			if err != nil {
				recordCode("RPC_" + status.Code(err).String())
				if idx%1000 == 0 {
					log.Printf("UseBalance %d failed: %v", idx, err)
				}
				return
			}
			if resp.Failed() {
				recordCode(resp.ErrorCode)
				return
			}
			recordCode("S")

			mu.Lock()
			successes++
			doCancel := *cancelEvery > 0 && successes%*cancelEvery == 0
			mu.Unlock()
			if !doCancel {
				return
			}

			cresp, err := c.CancelBalance(ctx, &grpc_adapter.CancelBalanceRequest{
				TransactionID: resp.TransactionID,
				AccountNumber: *accountNumber,
				Amount:        *amount,
			})
			if err == nil && !cresp.Failed() {
				mu.Lock()
				cancelled++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	printSummary(*total, elapsed, codes, cancelled)
}

// requestIDInterceptor 每個請求帶上 x-request-id
func requestIDInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", uuid.NewString())
	return invoker(ctx, method, req, reply, cc, opts...)
}

func printSummary(total int, elapsed time.Duration, codes map[string]int, cancelled int) {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	bold.Printf("Completed %d requests in %v\n", total, elapsed)
	bold.Printf("TPS: %.2f\n", float64(total)/elapsed.Seconds())

	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line := fmt.Sprintf("  %-30s %d\n", k, codes[k])
		switch {
		case k == "S":
			ok.Print(line)
		case len(k) > 4 && k[:4] == "RPC_":
			bad.Print(line)
		default:
			warn.Print(line)
		}
	}
	if cancelled > 0 {
		ok.Printf("  %-30s %d\n", "CANCELLED", cancelled)
	}
}
