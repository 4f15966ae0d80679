// Package main provides a tool to seed the database with demo board data.
//
// It signs up a handful of demo users, posts sample synopses for each, and
// then has the users like, bookmark, follow, and comment on each other's work
// at random. Everything goes through the service layer, so counters and
// notifications end up exactly as they would from the API.
//
// Usage:
//
//	DB_PATH=~/arasuji/db go run ./cmd/seed
//	DB_PATH=~/arasuji/db go run ./cmd/seed -users 8 -index ~/arasuji
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/arasuji/arasuji-server/internal/auth"
	"github.com/arasuji/arasuji-server/internal/config"
	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/search"
	"github.com/arasuji/arasuji-server/internal/service"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/store/sqlite"
	"github.com/arasuji/arasuji-server/internal/validation"
)

var (
	userCount = flag.Int("users", 5, "Number of demo users to create")
	indexPath = flag.String("index", "", "Data directory of the search index to keep in sync (optional)")
)

const demoPassword = "arasuji-demo"

var demoNames = []string{"ゆき", "はると", "みお", "そうた", "あかり", "りく", "ひな", "かいと"}

type demoPost struct {
	title     string
	catchcopy string
	body      string
	genre     string
	tags      []string
}

var demoPosts = []demoPost{
	{"竜の娘", "卵を拾ったのは、わたしでした", "辺境の村で竜の卵を拾った少女が、孵った竜と一緒に王都を目指す。", "ファンタジー", []string{"竜", "旅"}},
	{"火星の探偵", "", "火星ドームで起きた密室事件。容疑者は旧式の作業ロボットだけだった。", "SF", []string{"ロボット", "ミステリー"}},
	{"", "", "放課後の図書室にだけ現れる先輩と、返却期限の切れた一冊の本の話。", "青春", []string{"学園"}},
	{"深夜二時の訪問者", "ドアを開けてはいけない", "毎晩同じ時刻にノックが三回。覗き穴の向こうには誰もいない。", "ホラー", nil},
	{"魔王城の経理係", "", "魔王軍の予算を立て直すため、元銀行員の青年が異世界で奮闘する。", "ファンタジー", []string{"お仕事", "異世界"}},
	{"祖母の台所", "", "祖母が遺したレシピ帳をたどって、家族の知らなかった過去に触れる。", "エッセイ・ノンフィクション", []string{"家族"}},
}

var demoComments = []string{
	"続きが気になります！",
	"設定がすごく好きです。",
	"タイトルで読みたくなりました。",
	"最後の一文が効いてますね。",
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/arasuji/db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	var (
		db  store.Backend
		err error
	)
	if os.Getenv("STORE") == config.BackendSQLite {
		db, err = sqlite.Open(dbPath, nil)
	} else {
		db, err = store.New(dbPath, nil)
	}
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	var indexer service.PostIndexer
	if *indexPath != "" {
		index, err := search.NewSearchIndex(search.Options{DataPath: *indexPath})
		if err != nil {
			log.Fatalf("Failed to open search index: %v", err)
		}
		defer index.Close()
		indexer = index
	}

	if err := seed(context.Background(), db, indexer); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	fmt.Println("\nSeeding complete!")
}

func seed(ctx context.Context, db store.Backend, indexer service.PostIndexer) error {
	keyHex, err := auth.GenerateKeyHex()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(keyHex, 15*time.Minute, 24*time.Hour)
	if err != nil {
		return err
	}

	v := validation.New()
	notifier := service.NewNotifier(db, service.NoopEmitter{}, nil)
	defer notifier.Wait()

	ledger := service.NewLedger(db, notifier, service.NoopEmitter{}, nil)
	sessions := service.NewSessionService(db, tokens, nil)
	authService := service.NewAuthService(db, tokens, sessions, nil, v, service.AuthOptions{}, nil)
	posts := service.NewPostService(db, indexer, v, nil)
	comments := service.NewCommentService(db, ledger, notifier, v, nil)

	n := min(max(*userCount, 2), len(demoNames))
	userIDs := make([]string, 0, n)
	for i := range n {
		uid, err := ensureUser(ctx, authService, i)
		if err != nil {
			return err
		}
		userIDs = append(userIDs, uid)
		fmt.Printf("User %s (%s)\n", demoNames[i], uid)
	}

	var postIDs []string
	for i, p := range demoPosts {
		author := userIDs[i%len(userIDs)]
		view, err := posts.Create(ctx, author, service.CreatePostRequest{
			Title:     p.title,
			Catchcopy: p.catchcopy,
			Body:      p.body,
			Genre:     p.genre,
			Tags:      p.tags,
		})
		if err != nil {
			return fmt.Errorf("create post %d: %w", i, err)
		}
		postIDs = append(postIDs, view.ID)
	}
	fmt.Printf("Created %d posts\n", len(postIDs))

	var likes, bookmarks, follows, replies int
	for _, uid := range userIDs {
		for _, postID := range postIDs {
			if rand.IntN(2) == 0 {
				if _, err := ledger.ToggleLike(ctx, uid, postID); err != nil {
					return err
				}
				likes++
			}
			if rand.IntN(4) == 0 {
				if _, err := ledger.ToggleBookmark(ctx, uid, postID); err != nil {
					return err
				}
				bookmarks++
			}
			if rand.IntN(3) == 0 {
				body := demoComments[rand.IntN(len(demoComments))]
				if _, err := comments.Add(ctx, uid, postID, body, ""); err != nil {
					return err
				}
				replies++
			}
		}
		for _, other := range userIDs {
			if other == uid || rand.IntN(2) == 0 {
				continue
			}
			if _, err := ledger.ToggleFollow(ctx, uid, other); err != nil {
				return err
			}
			follows++
		}
	}

	fmt.Printf("Added %d likes, %d bookmarks, %d follows, %d comments\n", likes, bookmarks, follows, replies)
	return nil
}

// ensureUser signs up the i-th demo user, or signs in when it already exists.
func ensureUser(ctx context.Context, authService *service.AuthService, i int) (string, error) {
	email := fmt.Sprintf("demo%d@arasuji.example", i+1)
	client := service.ClientInfo{UserAgent: "arasuji-seed"}

	resp, err := authService.SignUp(ctx, service.SignUpRequest{
		Email:           email,
		Password:        demoPassword,
		PasswordConfirm: demoPassword,
		Username:        demoNames[i],
		AgreedToTerms:   true,
	}, client)
	if domainerrors.CodeOf(err) == domainerrors.CodeAlreadyExists {
		resp, err = authService.SignIn(ctx, service.SignInRequest{Email: email, Password: demoPassword}, client)
	}
	if err != nil {
		return "", fmt.Errorf("demo user %s: %w", email, err)
	}
	return userID(resp.User), nil
}

func userID(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
